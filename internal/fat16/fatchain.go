package fat16

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// FAT16 cluster value boundaries. Values below 2 terminate a chain, values
// from 0xFFF7 up mark bad clusters and end-of-chain.
const (
	clusterMin = 2
	clusterEOC = 0xFFF7
)

// fatSignature is the media-descriptor signature expected at the start of
// every FAT16 table.
var fatSignature = []byte{0xF8, 0xFF, 0xFF, 0xFF}

// fatTable gives access to the first FAT of a volume through a BlockChain
// over the table's full byte range.
type fatTable struct {
	chain *BlockChain
}

// newFATTable builds the chain for the first FAT and verifies its
// signature. A mismatch fails with ErrInvalidFormat.
func newFATTable(r io.ReaderAt, br *BootRecord) (*fatTable, error) {
	chain := NewBlockChain(r, []uint32{0}, br.FATSize, br.FATOffset(0))
	sig, err := chain.Read(0, int64(len(fatSignature)))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, fatSignature) {
		return nil, fmt.Errorf("%w: FAT signature % X, want % X", ErrInvalidFormat, sig, fatSignature)
	}
	return &fatTable{chain: chain}, nil
}

// next returns the FAT entry for the given cluster, the 16-bit little-endian
// value at table offset cluster*2.
func (t *fatTable) next(cluster uint16) (uint16, error) {
	b, err := t.chain.Read(int64(cluster)*2, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// chainFrom walks the cluster chain starting at first. A zero first cluster
// together with a zero size denotes an empty object and yields an empty
// chain. The walk appends clusters while they are in the valid data range
// and stops at an end-of-chain value (>= 0xFFF7) or a terminator (< 2).
// A cluster seen twice means the FAT is corrupt and fails the walk.
func (t *fatTable) chainFrom(first uint16, size uint32) ([]uint16, error) {
	if first == 0 && size == 0 {
		return nil, nil
	}
	if first < clusterMin || first >= 0xFFF8 {
		return nil, fmt.Errorf("%w: first cluster %d out of range", ErrCorruptDirectory, first)
	}

	var clusters []uint16
	seen := make(map[uint16]bool)
	cur := first
	for cur >= clusterMin && cur < clusterEOC {
		if seen[cur] {
			return nil, fmt.Errorf("%w: FAT loop at cluster %d", ErrCorruptDirectory, cur)
		}
		seen[cur] = true
		clusters = append(clusters, cur)

		next, err := t.next(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return clusters, nil
}
