package fat16

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// testImage builds a small FAT16 image:
//
//	sector 0    boot record (bps=512, spc=1, rsvd=1, 2 FATs of 1 sector,
//	            16 root entries)
//	sector 1/2  FAT copies
//	sector 3    root directory: volume label, dir A (cluster 2),
//	            file ROOT.TXT (cluster 4, 100 bytes), dir BIG (cluster 5)
//	cluster 2   dir A: dir B (cluster 3)
//	cluster 3   dir B: file FILE.TXT (cluster 4, 123 bytes)
//	cluster 4   file data (unused by listings)
//	cluster 5,6 dir BIG: 17 files spanning the two clusters
func testImage(t *testing.T) []byte {
	t.Helper()

	img := make([]byte, 16*512)
	copy(img, bootSector(512, 1, 1, 2, 16, 1))

	br, err := ParseBootRecord(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("ParseBootRecord() error = %v", err)
	}

	putFAT := func(cluster, next uint16) {
		binary.LittleEndian.PutUint16(img[br.FATOffset(0)+int64(cluster)*2:], next)
		binary.LittleEndian.PutUint16(img[br.FATOffset(1)+int64(cluster)*2:], next)
	}
	copy(img[br.FATOffset(0):], fatSignature)
	copy(img[br.FATOffset(1):], fatSignature)
	putFAT(2, 0xFFFF)
	putFAT(3, 0xFFFF)
	putFAT(4, 0xFFFF)
	putFAT(5, 6)
	putFAT(6, 0xFFFF)

	writeDir := func(off int64, slots ...[]byte) {
		for i, s := range slots {
			copy(img[off+int64(i)*slotSize:], s)
		}
	}

	writeDir(br.RootDirOffset,
		shortSlot("TESTVOL", "", AttrVolumeID, 0, 0),
		shortSlot("A", "", AttrDirectory, 2, 0),
		shortSlot("ROOT", "TXT", AttrArchive, 4, 100),
		shortSlot("BIG", "", AttrDirectory, 5, 0),
	)
	writeDir(br.ClusterOffset(2),
		shortSlot("B", "", AttrDirectory, 3, 0),
	)
	writeDir(br.ClusterOffset(3),
		shortSlot("FILE", "TXT", AttrArchive, 4, 123),
	)

	var bigSlots [][]byte
	for i := 0; i < 17; i++ {
		bigSlots = append(bigSlots, shortSlot(fmt.Sprintf("F%02d", i), "DAT", AttrArchive, 4, uint32(i)))
	}
	writeDir(br.ClusterOffset(5), bigSlots[:16]...)
	writeDir(br.ClusterOffset(6), bigSlots[16:]...)

	return img
}

func openTestVolume(t *testing.T) *Volume {
	t.Helper()
	v, err := Open(bytes.NewReader(testImage(t)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return v
}

func TestOpenRejectsBadVolumes(t *testing.T) {
	t.Run("bad boot signature", func(t *testing.T) {
		img := testImage(t)
		img[0x1FE] = 0
		if _, err := Open(bytes.NewReader(img)); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
		}
	})
	t.Run("bad FAT signature", func(t *testing.T) {
		img := testImage(t)
		img[512] = 0xF0
		if _, err := Open(bytes.NewReader(img)); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
		}
	})
	t.Run("zero sectors per FAT", func(t *testing.T) {
		// Must be rejected before the FAT is read, not crash on the
		// degenerate geometry.
		img := bootSector(512, 1, 1, 2, 16, 0)
		if _, err := Open(bytes.NewReader(img)); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("Open() error = %v, want ErrInvalidFormat", err)
		}
	})
}

func TestResolveRoot(t *testing.T) {
	v := openTestVolume(t)

	for _, p := range []string{"/", "", "."} {
		entries, err := v.Resolve(p)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", p, err)
		}
		if len(entries) != 4 {
			t.Fatalf("Resolve(%q) returned %d entries, want 4", p, len(entries))
		}
		if entries[0].Kind != KindVolumeLabel || entries[0].Name != "TESTVOL" {
			t.Errorf("first entry = %+v, want volume label TESTVOL", entries[0])
		}
	}
}

func TestResolveNestedFile(t *testing.T) {
	v := openTestVolume(t)

	entries, err := v.Resolve("/A/B/file.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Kind != KindFile || e.Name != "FILE.TXT" || e.Cluster != 4 || e.Size != 123 {
		t.Errorf("entry = %+v, want FILE.TXT cluster 4 size 123", e)
	}

	br := v.BootRecord()
	if e.Offset != br.ClusterOffset(3) {
		t.Errorf("Offset = %d, want %d", e.Offset, br.ClusterOffset(3))
	}
}

func TestResolveDirectoryListing(t *testing.T) {
	v := openTestVolume(t)

	entries, err := v.Resolve("/A")
	if err != nil {
		t.Fatalf("Resolve(/A) error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "B" || entries[0].Kind != KindDir {
		t.Errorf("entries = %+v, want only dir B", entries)
	}
}

func TestResolveMultiClusterDirectory(t *testing.T) {
	v := openTestVolume(t)

	entries, err := v.Resolve("/BIG")
	if err != nil {
		t.Fatalf("Resolve(/BIG) error = %v", err)
	}
	if len(entries) != 17 {
		t.Fatalf("got %d entries, want 17", len(entries))
	}
	if entries[16].Name != "F16.DAT" {
		t.Errorf("last entry = %q, want F16.DAT", entries[16].Name)
	}
}

func TestResolveNotFound(t *testing.T) {
	v := openTestVolume(t)

	tests := []struct {
		path       string
		wantPrefix string
	}{
		{"/A/missing", "/A/missing"},
		{"/missing/deeper", "/missing"},
		{"/A/B/file.txt/extra", "/A/B/file.txt"},
	}
	for _, tt := range tests {
		_, err := v.Resolve(tt.path)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Resolve(%q) error = %v, want ErrNotFound", tt.path, err)
		}
		if !strings.Contains(err.Error(), tt.wantPrefix) {
			t.Errorf("Resolve(%q) error = %q, want mention of %q", tt.path, err, tt.wantPrefix)
		}
	}
}

func TestResolveIsCaseInsensitive(t *testing.T) {
	v := openTestVolume(t)

	entries, err := v.Resolve("/a/b/FILE.txt")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "FILE.TXT" {
		t.Errorf("entries = %+v, want FILE.TXT", entries)
	}
}

func TestDirectoryCacheAvoidsRepeatWalks(t *testing.T) {
	v := openTestVolume(t)

	if _, err := v.Resolve("/A/B"); err != nil {
		t.Fatalf("Resolve(/A/B) error = %v", err)
	}
	walks := v.fatWalks
	if walks != 2 {
		t.Fatalf("fatWalks = %d after first resolution, want 2", walks)
	}

	// Same directories again, different case: no further walks.
	if _, err := v.Resolve("/a/b"); err != nil {
		t.Fatalf("Resolve(/a/b) error = %v", err)
	}
	if v.fatWalks != walks {
		t.Errorf("fatWalks = %d after re-resolution, want %d", v.fatWalks, walks)
	}

	// A new directory still walks.
	if _, err := v.Resolve("/BIG"); err != nil {
		t.Fatalf("Resolve(/BIG) error = %v", err)
	}
	if v.fatWalks != walks+1 {
		t.Errorf("fatWalks = %d, want %d", v.fatWalks, walks+1)
	}
}
