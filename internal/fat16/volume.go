package fat16

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xrgtn/fat16dir/internal/utils/logger"
)

var log = logger.Logger()

// Volume is an opened FAT16 volume. It owns the device reader, the parsed
// boot record, the first FAT's block chain and a cache of directory block
// chains keyed by normalized absolute path. All access is read-only and
// single-threaded; the cache needs no locking.
type Volume struct {
	r    io.ReaderAt
	br   *BootRecord
	fat  *fatTable
	dirs map[string]*BlockChain

	// fatWalks counts chain walks, so tests can verify that cached
	// directories are not walked again.
	fatWalks int
}

// Open parses the boot record, verifies the first FAT's signature and seeds
// the directory cache with the root directory. The root directory is a fixed
// area sized by the root entry count, not part of the cluster area, so its
// chain is a single block covering that whole area.
func Open(r io.ReaderAt) (*Volume, error) {
	br, err := ParseBootRecord(r)
	if err != nil {
		return nil, err
	}

	fat, err := newFATTable(r, br)
	if err != nil {
		return nil, err
	}

	log.Debugf("FAT16 volume: oem=%q label=%q bps=%d spc=%d rsvd=%d fats=%d rdents=%d spf=%d",
		br.OEMName, br.VolumeLabel, br.BytesPerSector, br.SectorsPerCluster,
		br.ReservedSectors, br.NumFATs, br.RootEntryCount, br.SectorsPerFAT)
	log.Debugf("geometry: fat1=0x%X rootdir=0x%X+%d c2=0x%X c0=0x%X",
		br.FATOffset(0), br.RootDirOffset, br.RootDirSize, br.Cluster2Offset, br.Cluster0Offset)

	v := &Volume{
		r:    r,
		br:   br,
		fat:  fat,
		dirs: make(map[string]*BlockChain),
	}
	v.dirs["/"] = NewBlockChain(r, []uint32{0}, br.RootDirSize, br.RootDirOffset)
	return v, nil
}

// BootRecord returns the volume's parsed boot record.
func (v *Volume) BootRecord() *BootRecord {
	return v.br
}

// Resolve resolves a slash-separated path against the volume. An empty or
// root path yields the root directory's listable entries; a path naming a
// directory yields that directory's entries; a path naming a file yields a
// single-entry result. An unmatched component fails with ErrNotFound naming
// the unresolved path prefix.
func (v *Volume) Resolve(p string) ([]DirEntry, error) {
	return v.resolve("/", splitPath(p))
}

func (v *Volume) resolve(dir string, rest []string) ([]DirEntry, error) {
	entries, err := DecodeDir(v.dirs[cacheKey(dir)])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	if len(rest) == 0 {
		return entries, nil
	}

	component := rest[0]
	prefix := joinPath(dir, component)

	for _, e := range entries {
		if !strings.EqualFold(e.Name, component) {
			continue
		}
		switch e.Kind {
		case KindFile:
			if len(rest) > 1 {
				return nil, fmt.Errorf("%w: %s: not a directory", ErrNotFound, prefix)
			}
			return []DirEntry{e}, nil
		case KindDir:
			if err := v.cacheDir(prefix, e); err != nil {
				return nil, err
			}
			return v.resolve(prefix, rest[1:])
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
}

// cacheDir materializes the block chain for a subdirectory on first visit:
// its cluster chain is walked and mapped onto the cluster area with one
// block per cluster. Later visits reuse the cached chain without touching
// the FAT.
func (v *Volume) cacheDir(p string, e DirEntry) error {
	key := cacheKey(p)
	if _, ok := v.dirs[key]; ok {
		return nil
	}

	v.fatWalks++
	clusters, err := v.fat.chainFrom(e.Cluster, e.Size)
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}

	blocks := make([]uint32, len(clusters))
	for i, c := range clusters {
		blocks[i] = uint32(c)
	}
	v.dirs[key] = NewBlockChain(v.r, blocks, v.br.ClusterSize(), v.br.Cluster0Offset)
	log.Debugf("cached directory %s: clusters %v", p, clusters)
	return nil
}

// splitPath normalizes separators, resolves "." and ".." lexically and
// breaks the path into its non-empty components.
func splitPath(p string) []string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	var parts []string
	for _, c := range strings.Split(p, "/") {
		if c != "" {
			parts = append(parts, c)
		}
	}
	return parts
}

func joinPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// cacheKey folds case so the cache honors FAT's case-insensitive matching.
func cacheKey(p string) string {
	return strings.ToLower(p)
}
