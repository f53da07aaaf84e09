// Package listing turns decoded FAT16 directory entries into presentable
// listings: one row per entry with the attribute string, kind tag, first
// cluster, reportable offsets, an optional size column and the name.
package listing

import (
	"fmt"

	"github.com/xrgtn/fat16dir/internal/fat16"
)

// SizeMode selects the optional size column.
type SizeMode int

const (
	SizeNone SizeMode = iota
	SizeBytes
	SizeClusters
	SizeSectors
)

// ParseSizeMode maps a CLI selector value to a SizeMode.
func ParseSizeMode(s string) (SizeMode, error) {
	switch s {
	case "none", "":
		return SizeNone, nil
	case "bytes":
		return SizeBytes, nil
	case "clusters":
		return SizeClusters, nil
	case "sectors":
		return SizeSectors, nil
	default:
		return SizeNone, fmt.Errorf("unsupported size selector %q (supported: none, bytes, clusters, sectors)", s)
	}
}

func (m SizeMode) String() string {
	switch m {
	case SizeBytes:
		return "bytes"
	case SizeClusters:
		return "clusters"
	case SizeSectors:
		return "sectors"
	default:
		return "none"
	}
}

// Row is one listable entry of a directory listing.
type Row struct {
	Attrs      string `json:"attrs" yaml:"attrs"`
	Kind       string `json:"kind" yaml:"kind"`
	Cluster    uint16 `json:"cluster" yaml:"cluster"`
	Offset     int64  `json:"offset" yaml:"offset"`
	SlotOffset int64  `json:"slotOffset" yaml:"slotOffset"`
	SizeBytes  uint32 `json:"sizeBytes" yaml:"sizeBytes"`
	Size       *int64 `json:"size,omitempty" yaml:"size,omitempty"`
	Name       string `json:"name" yaml:"name"`
}

// Listing is the result of resolving one requested path.
type Listing struct {
	Path string `json:"path" yaml:"path"`
	Rows []Row  `json:"entries" yaml:"entries"`
}

// Build converts decoded entries into a Listing. The boot record supplies
// the cluster and sector sizes for the clusters/sectors size modes; both
// round up.
func Build(path string, entries []fat16.DirEntry, br *fat16.BootRecord, mode SizeMode) Listing {
	l := Listing{Path: path, Rows: make([]Row, 0, len(entries))}
	for _, e := range entries {
		row := Row{
			Attrs:      e.Attrs,
			Kind:       e.Kind.String(),
			Cluster:    e.Cluster,
			Offset:     e.Offset,
			SlotOffset: e.SlotOffset,
			SizeBytes:  e.Size,
			Name:       e.Name,
		}
		if mode != SizeNone {
			size := displaySize(int64(e.Size), br, mode)
			row.Size = &size
		}
		l.Rows = append(l.Rows, row)
	}
	return l
}

func displaySize(bytes int64, br *fat16.BootRecord, mode SizeMode) int64 {
	switch mode {
	case SizeClusters:
		cs := br.ClusterSize()
		return (bytes + cs - 1) / cs
	case SizeSectors:
		ss := int64(br.BytesPerSector)
		return (bytes + ss - 1) / ss
	default:
		return bytes
	}
}
