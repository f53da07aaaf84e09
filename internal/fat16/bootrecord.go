// Package fat16 reads FAT16 volumes directly from their on-disk structures,
// without mounting. Access is read-only and metadata-only: the package
// reconstructs directory listings, long filenames and cluster chains but
// never file contents.
package fat16

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

const (
	bootSectorSize = 512
	bootSignature  = 0xAA55
	slotSize       = 32
)

// bpb is the BIOS parameter block as laid out in sector 0. Field order and
// widths match the disk format exactly so the whole block can be decoded
// with a single little-endian binary.Read.
type bpb struct {
	JumpBoot            [3]byte
	OEMName             [8]byte
	BytesPerSector      uint16
	SectorsPerCluster   uint8
	ReservedSectorCount uint16
	NumFATs             uint8
	RootEntryCount      uint16
	TotalSectors16      uint16
	Media               byte
	SectorsPerFAT       uint16
	SectorsPerTrack     uint16
	NumberOfHeads       uint16
	HiddenSectors       uint32
	TotalSectors32      uint32
	DriveNumber         byte
	Reserved1           byte
	BootSignature       byte
	VolumeID            uint32
	VolumeLabel         [11]byte
	FileSystemType      [8]byte
}

// BootRecord holds the geometry fields parsed from sector 0 plus the byte
// offsets derived from them. It is parsed once and never mutated.
type BootRecord struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	SectorsPerFAT     uint16
	SectorsPerTrack   uint16
	Heads             uint16

	OEMName     string
	VolumeID    uint32
	VolumeLabel string
	Media       byte

	FATSize        int64 // one FAT, bytes
	RootDirSize    int64 // RootEntryCount * 32
	RootDirSectors uint32
	RootDirOffset  int64
	Cluster2Offset int64
	Cluster0Offset int64
}

// ParseBootRecord decodes the first sector of the device and derives the
// volume geometry. It fails with ErrInvalidFormat if the boot signature is
// not 0xAA55, the sector size is not one of 256, 512 or 2048, or the
// cluster or FAT sizing fields are zero, and with ErrTruncatedRead if the
// device is shorter than one boot sector.
func ParseBootRecord(r io.ReaderAt) (*BootRecord, error) {
	buf := make([]byte, bootSectorSize)
	n, err := r.ReadAt(buf, 0)
	if n < bootSectorSize {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: boot sector: %v", ErrTruncatedRead, err)
	}

	var raw bpb
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("decode boot sector: %w", err)
	}

	if sig := binary.LittleEndian.Uint16(buf[0x1FE:]); sig != bootSignature {
		return nil, fmt.Errorf("%w: boot signature 0x%04X, want 0x%04X", ErrInvalidFormat, sig, bootSignature)
	}
	switch raw.BytesPerSector {
	case 256, 512, 2048:
	default:
		return nil, fmt.Errorf("%w: unsupported sector size %d", ErrInvalidFormat, raw.BytesPerSector)
	}
	if raw.SectorsPerCluster == 0 {
		return nil, fmt.Errorf("%w: zero sectors per cluster", ErrInvalidFormat)
	}
	if raw.SectorsPerFAT == 0 {
		return nil, fmt.Errorf("%w: zero sectors per FAT", ErrInvalidFormat)
	}

	br := &BootRecord{
		BytesPerSector:    raw.BytesPerSector,
		SectorsPerCluster: raw.SectorsPerCluster,
		ReservedSectors:   raw.ReservedSectorCount,
		NumFATs:           raw.NumFATs,
		RootEntryCount:    raw.RootEntryCount,
		SectorsPerFAT:     raw.SectorsPerFAT,
		SectorsPerTrack:   raw.SectorsPerTrack,
		Heads:             raw.NumberOfHeads,

		OEMName:     strings.TrimRight(string(raw.OEMName[:]), " "),
		VolumeID:    raw.VolumeID,
		VolumeLabel: strings.TrimRight(string(raw.VolumeLabel[:]), " "),
		Media:       raw.Media,
	}

	bps := int64(br.BytesPerSector)
	br.FATSize = int64(br.SectorsPerFAT) * bps
	br.RootDirSize = int64(br.RootEntryCount) * slotSize
	br.RootDirSectors = uint32((br.RootDirSize + bps - 1) / bps)
	br.RootDirOffset = (int64(br.ReservedSectors) + int64(br.NumFATs)*int64(br.SectorsPerFAT)) * bps
	br.Cluster2Offset = br.RootDirOffset + int64(br.RootDirSectors)*bps
	br.Cluster0Offset = br.Cluster2Offset - 2*br.ClusterSize()

	return br, nil
}

// FATOffset returns the byte offset of FAT i, counting from 0.
func (br *BootRecord) FATOffset(i int) int64 {
	return (int64(br.ReservedSectors) + int64(i)*int64(br.SectorsPerFAT)) * int64(br.BytesPerSector)
}

// ClusterSize returns the size of one cluster in bytes.
func (br *BootRecord) ClusterSize() int64 {
	return int64(br.SectorsPerCluster) * int64(br.BytesPerSector)
}

// ClusterOffset returns the byte offset of cluster c's data area.
// Cluster numbering starts at 2.
func (br *BootRecord) ClusterOffset(c uint16) int64 {
	return br.Cluster0Offset + int64(c)*br.ClusterSize()
}
