package fat16

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// countingReader counts the underlying reads a BlockChain issues.
type countingReader struct {
	r     io.ReaderAt
	reads int
}

func (c *countingReader) ReadAt(p []byte, off int64) (int, error) {
	c.reads++
	return c.r.ReadAt(p, off)
}

// patternDevice builds a device of n 512-byte blocks where byte i of block b
// is byte(b*7+i).
func patternDevice(n int) []byte {
	buf := make([]byte, n*512)
	for b := 0; b < n; b++ {
		for i := 0; i < 512; i++ {
			buf[b*512+i] = byte(b*7 + i)
		}
	}
	return buf
}

func TestBlockChainLenAndAbsOffset(t *testing.T) {
	c := NewBlockChain(bytes.NewReader(nil), []uint32{3, 7, 9}, 512, 4096)

	if got, want := c.Len(), int64(3*512); got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
	if got, want := c.AbsOffset(0), int64(4096+3*512); got != want {
		t.Errorf("AbsOffset(0) = %d, want %d", got, want)
	}
	if got, want := c.AbsOffset(600), int64(4096+7*512+88); got != want {
		t.Errorf("AbsOffset(600) = %d, want %d", got, want)
	}
}

func TestBlockChainReadSpansBlocks(t *testing.T) {
	device := patternDevice(10)
	counting := &countingReader{r: bytes.NewReader(device)}
	c := NewBlockChain(counting, []uint32{3, 7, 9}, 512, 0)

	got, err := c.Read(400, 600)
	if err != nil {
		t.Fatalf("Read(400, 600) error = %v", err)
	}

	want := append([]byte{}, device[3*512+400:4*512]...)
	want = append(want, device[7*512:7*512+488]...)
	if !bytes.Equal(got, want) {
		t.Errorf("Read(400, 600) returned wrong bytes")
	}
	if counting.reads < 2 {
		t.Errorf("reads = %d, want at least 2 (one per touched block)", counting.reads)
	}
}

func TestBlockChainBoundedReadsNeverCrossBlocks(t *testing.T) {
	device := patternDevice(10)
	counting := &countingReader{r: bytes.NewReader(device)}
	c := NewBlockChain(counting, []uint32{1, 5, 2}, 512, 0)

	if _, err := c.Read(0, 3*512); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if counting.reads != 3 {
		t.Errorf("reads = %d, want 3", counting.reads)
	}
}

func TestBlockChainReadErrors(t *testing.T) {
	device := patternDevice(4)

	t.Run("past chain end", func(t *testing.T) {
		c := NewBlockChain(bytes.NewReader(device), []uint32{1}, 512, 0)
		_, err := c.Read(500, 100)
		if !errors.Is(err, ErrTruncatedRead) {
			t.Errorf("Read() error = %v, want ErrTruncatedRead", err)
		}
	})

	t.Run("device shorter than geometry", func(t *testing.T) {
		// Block 9 does not exist on a 4-block device.
		c := NewBlockChain(bytes.NewReader(device), []uint32{9}, 512, 0)
		_, err := c.Read(0, 16)
		if !errors.Is(err, ErrTruncatedRead) {
			t.Errorf("Read() error = %v, want ErrTruncatedRead", err)
		}
	})
}
