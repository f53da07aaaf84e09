// Package device opens block devices and disk images for read-only
// inspection. Compressed images (.xz, .gz) are decompressed to a temporary
// file first, and a partition of the image can be selected through its
// MBR/GPT partition table.
package device

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/diskfs/go-diskfs/partition"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/xrgtn/fat16dir/internal/utils/logger"
)

var log = logger.Logger()

// Device is an opened, read-only image or block device, possibly narrowed
// to one partition.
type Device struct {
	tmpFs   afero.Fs
	file    afero.File
	tmpPath string
	reader  io.ReaderAt
	size    int64
}

// Open opens the image or device at path on fsys. A .xz or .gz suffix
// triggers decompression to a temporary file on tmpFs that is removed on
// Close; fsys may be read-only, tmpFs must be writable. If part is greater
// than zero, the byte range of that partition (1-based, in partition-table
// order) becomes the device's visible range.
func Open(fsys, tmpFs afero.Fs, path string, part int) (*Device, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open device: %w", err)
	}

	d := &Device{tmpFs: tmpFs, file: f}

	if err := d.decompress(path); err != nil {
		d.Close()
		return nil, err
	}

	fi, err := d.file.Stat()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("stat device: %w", err)
	}
	d.size = fi.Size()
	d.reader = io.NewSectionReader(d.file, 0, d.size)

	if part > 0 {
		if err := d.selectPartition(part); err != nil {
			d.Close()
			return nil, err
		}
	}
	return d, nil
}

// ReaderAt returns the device's visible byte range.
func (d *Device) ReaderAt() io.ReaderAt {
	return d.reader
}

// Size returns the length of the visible byte range.
func (d *Device) Size() int64 {
	return d.size
}

// Close releases the underlying file and removes any temporary
// decompressed copy.
func (d *Device) Close() error {
	var err error
	if d.file != nil {
		err = d.file.Close()
		d.file = nil
	}
	if d.tmpPath != "" {
		if rmErr := d.tmpFs.Remove(d.tmpPath); rmErr != nil && err == nil {
			err = rmErr
		}
		d.tmpPath = ""
	}
	return err
}

// decompress replaces the open compressed file with a temporary
// decompressed copy when the path carries a known compression suffix.
func (d *Device) decompress(path string) error {
	var src io.Reader
	switch {
	case strings.HasSuffix(path, ".xz"):
		r, err := xz.NewReader(d.file)
		if err != nil {
			return fmt.Errorf("open xz stream: %w", err)
		}
		src = r
	case strings.HasSuffix(path, ".gz"):
		r, err := gzip.NewReader(d.file)
		if err != nil {
			return fmt.Errorf("open gzip stream: %w", err)
		}
		defer r.Close()
		src = r
	default:
		return nil
	}

	tmp, err := afero.TempFile(d.tmpFs, "", "fat16dir-*.img")
	if err != nil {
		return fmt.Errorf("create temporary image: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		d.tmpFs.Remove(tmp.Name())
		return fmt.Errorf("decompress image: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		d.tmpFs.Remove(tmp.Name())
		return fmt.Errorf("rewind temporary image: %w", err)
	}

	log.Debugf("decompressed %s to %s", path, tmp.Name())
	d.file.Close()
	d.file = tmp
	d.tmpPath = tmp.Name()
	return nil
}

// selectPartition narrows the visible range to partition n using the
// image's partition table.
func (d *Device) selectPartition(n int) error {
	table, err := partition.Read(d.file, 512, 512)
	if err != nil {
		return fmt.Errorf("read partition table: %w", err)
	}

	start, size, err := partitionRange(table, n)
	if err != nil {
		return err
	}
	log.Debugf("partition %d: offset 0x%X, %d bytes", n, start, size)

	d.reader = io.NewSectionReader(d.file, start, size)
	d.size = size
	return nil
}

// partitionRange returns the byte offset and length of partition n
// (1-based, counting only allocated slots) from an MBR or GPT table.
func partitionRange(table partition.Table, n int) (int64, int64, error) {
	var starts, sizes []int64

	switch t := table.(type) {
	case *mbr.Table:
		sectorSize := int64(t.LogicalSectorSize)
		if sectorSize == 0 {
			sectorSize = 512
		}
		for _, p := range t.Partitions {
			if p == nil || p.Type == mbr.Empty {
				continue
			}
			starts = append(starts, int64(p.Start)*sectorSize)
			sizes = append(sizes, int64(p.Size)*sectorSize)
		}
	case *gpt.Table:
		sectorSize := int64(t.LogicalSectorSize)
		if sectorSize == 0 {
			sectorSize = 512
		}
		for _, p := range t.Partitions {
			if p == nil || (p.Start == 0 && p.End == 0) {
				continue
			}
			starts = append(starts, int64(p.Start)*sectorSize)
			sizes = append(sizes, int64(p.End-p.Start+1)*sectorSize)
		}
	default:
		return 0, 0, fmt.Errorf("unsupported partition table type %T", table)
	}

	if n < 1 || n > len(starts) {
		return 0, 0, fmt.Errorf("partition %d out of range: table has %d partitions", n, len(starts))
	}
	return starts[n-1], sizes[n-1], nil
}
