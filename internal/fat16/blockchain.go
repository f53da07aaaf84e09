package fat16

import (
	"fmt"
	"io"
)

// BlockChain presents an ordered list of fixed-size physical blocks as one
// contiguous logical byte range. The blocks live in a block area starting at
// a base offset on the device and need not be adjacent, so a logical read
// spanning several blocks issues one bounded device read per block.
//
// Directory chains are owned by the volume's cache; the FAT table chain is
// built once per volume.
type BlockChain struct {
	r         io.ReaderAt
	blocks    []uint32
	blockSize int64
	base      int64
}

// NewBlockChain builds a chain over the given physical block numbers.
// blockSize is the size of one block and base the byte offset of the block
// area, so block b starts at base + b*blockSize on the device.
func NewBlockChain(r io.ReaderAt, blocks []uint32, blockSize, base int64) *BlockChain {
	return &BlockChain{r: r, blocks: blocks, blockSize: blockSize, base: base}
}

// Len returns the logical length of the chain in bytes.
func (c *BlockChain) Len() int64 {
	return int64(len(c.blocks)) * c.blockSize
}

// AbsOffset maps a logical position to its absolute byte offset on the
// device.
func (c *BlockChain) AbsOffset(pos int64) int64 {
	n, p := pos/c.blockSize, pos%c.blockSize
	return c.base + int64(c.blocks[n])*c.blockSize + p
}

// Read returns size bytes starting at logical position pos. The request is
// decomposed into bounded reads that never cross a block boundary; a short
// device read fails with ErrTruncatedRead identifying the physical block and
// the offset inside it.
func (c *BlockChain) Read(pos, size int64) ([]byte, error) {
	buf := make([]byte, 0, size)
	for int64(len(buf)) < size {
		b, err := c.readBounded(pos+int64(len(buf)), size-int64(len(buf)))
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// readBounded reads from pos up to the end of the block containing pos,
// clipping size to the remaining bytes in that block.
func (c *BlockChain) readBounded(pos, size int64) ([]byte, error) {
	n, p := pos/c.blockSize, pos%c.blockSize
	if n >= int64(len(c.blocks)) {
		return nil, fmt.Errorf("%w: logical offset %d beyond chain end %d", ErrTruncatedRead, pos, c.Len())
	}
	if p+size > c.blockSize {
		size = c.blockSize - p
	}

	block := c.blocks[n]
	abs := c.base + int64(block)*c.blockSize + p
	buf := make([]byte, size)
	got, err := c.r.ReadAt(buf, abs)
	if int64(got) < size {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: block %d, byte %d: %v", ErrTruncatedRead, block, p+int64(got), err)
	}
	return buf, nil
}
