package fat16

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"
)

// Directory entry attribute bits.
const (
	AttrReadOnly  = 0x01
	AttrHidden    = 0x02
	AttrSystem    = 0x04
	AttrVolumeID  = 0x08
	AttrDirectory = 0x10
	AttrArchive   = 0x20
	AttrLongName  = AttrReadOnly | AttrHidden | AttrSystem | AttrVolumeID
)

const (
	deletedMarker   = 0xE5
	lfnLastFlag     = 0x40
	lfnMaxIndex     = 20
	lfnUnitsPerSlot = 13
)

// EntryKind classifies the directory entries returned to callers. Long-name
// fragments and deleted slots are consumed during decoding and never
// surface.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
	KindVolumeLabel
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindVolumeLabel:
		return "vol"
	default:
		return "unknown"
	}
}

// DirEntry is one listable member of a directory.
type DirEntry struct {
	Kind     EntryKind
	Name     string
	Attrs    string // fixed-order presence string, see attrString
	AttrByte byte
	Cluster  uint16
	Size     uint32

	// Offset is the entry's reportable byte offset on the device. For a
	// long-named entry this is the offset of the first long-name slot
	// seen during the scan, not necessarily the one flagged as last.
	Offset int64
	// SlotOffset is the byte offset of the terminal 8.3 slot itself.
	SlotOffset int64
}

// attrString renders the six known attribute bits in fixed order: volume,
// directory, read-only, hidden, system, archive. Present bits show their
// letter, absent ones a dash.
func attrString(attr byte) string {
	var sb strings.Builder
	for _, am := range []struct {
		letter byte
		mask   byte
	}{
		{'v', AttrVolumeID},
		{'d', AttrDirectory},
		{'r', AttrReadOnly},
		{'h', AttrHidden},
		{'s', AttrSystem},
		{'a', AttrArchive},
	} {
		if attr&am.mask != 0 {
			sb.WriteByte(am.letter)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// lfnState accumulates long-name fragments while scanning a directory. It is
// reset after every terminal (non-long-name) slot.
type lfnState struct {
	parts    map[int][]byte // sequence index -> 26 raw bytes (13 UCS-2 units)
	checksum byte
	hasCksum bool
	maxIndex int
	offset   int64
	hasOff   bool
}

func (s *lfnState) reset() {
	s.parts = nil
	s.checksum = 0
	s.hasCksum = false
	s.maxIndex = 0
	s.offset = 0
	s.hasOff = false
}

func (s *lfnState) pending() bool { return len(s.parts) > 0 }

// add validates and stores one long-name fragment. flags is the slot's
// sequence byte, cksum the checksum shared by all fragments of one name and
// frag the 26 raw name bytes. off is the slot's device offset; the first
// fragment seen fixes the name's reportable offset.
func (s *lfnState) add(flags, cksum byte, frag []byte, off int64) error {
	index := int(flags &^ lfnLastFlag)
	if flags&lfnLastFlag != 0 {
		s.maxIndex = index
	}
	if index < 1 || index > lfnMaxIndex {
		return fmt.Errorf("%w: long-name sequence index %d out of range", ErrCorruptDirectory, index)
	}
	if s.maxIndex != 0 && index > s.maxIndex {
		return fmt.Errorf("%w: long-name sequence index %d above maximum %d", ErrCorruptDirectory, index, s.maxIndex)
	}
	if s.hasCksum && s.checksum != cksum {
		return fmt.Errorf("%w: long-name checksum 0x%02X, want 0x%02X", ErrCorruptDirectory, cksum, s.checksum)
	}
	s.checksum = cksum
	s.hasCksum = true

	if s.parts == nil {
		s.parts = make(map[int][]byte)
	}
	s.parts[index] = frag
	if !s.hasOff {
		s.offset = off
		s.hasOff = true
	}
	return nil
}

// name reconstructs the accumulated long name: fragments concatenated by
// ascending index, decoded as little-endian UTF-16 and truncated at the
// first zero code unit.
func (s *lfnState) name() (string, error) {
	if len(s.parts) != s.maxIndex {
		return "", fmt.Errorf("%w: %d long-name fragments, expected %d", ErrCorruptDirectory, len(s.parts), s.maxIndex)
	}
	units := make([]uint16, 0, s.maxIndex*lfnUnitsPerSlot)
	for i := 1; i <= s.maxIndex; i++ {
		frag := s.parts[i]
		for o := 0; o+2 <= len(frag); o += 2 {
			units = append(units, binary.LittleEndian.Uint16(frag[o:]))
		}
	}
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units)), nil
}

// lfnFragment extracts the 13 UCS-2 units of a long-name slot as 26 raw
// bytes, taken from the slot's three name regions.
func lfnFragment(slot []byte) []byte {
	frag := make([]byte, 0, 2*lfnUnitsPerSlot)
	frag = append(frag, slot[0x01:0x0B]...)
	frag = append(frag, slot[0x0E:0x1A]...)
	frag = append(frag, slot[0x1C:0x20]...)
	return frag
}

// shortName derives the displayed name from the right-trimmed 8-byte name
// field plus, if non-empty, a dot and the trimmed 3-byte extension.
func shortName(slot []byte) string {
	name := strings.TrimRight(string(slot[0:8]), " ")
	ext := strings.TrimRight(string(slot[8:11]), " ")
	if ext != "" {
		return name + "." + ext
	}
	return name
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// DecodeDir scans a directory's full 32-byte slot table and returns its
// listable entries (files, subdirectories, volume labels). The scan stops at
// the first all-zero slot. Deleted entries and long-name fragments are
// consumed internally. Any violation of the long-name chaining rules fails
// with ErrCorruptDirectory; decoding of the directory is abandoned.
func DecodeDir(chain *BlockChain) ([]DirEntry, error) {
	count := chain.Len() / slotSize
	var entries []DirEntry
	var lfn lfnState

	for i := int64(0); i < count; i++ {
		slot, err := chain.Read(i*slotSize, slotSize)
		if err != nil {
			return nil, err
		}
		if allZero(slot) {
			break
		}

		attr := slot[0x0B]
		cluster := binary.LittleEndian.Uint16(slot[0x1A:])
		off := chain.AbsOffset(i * slotSize)

		if attr == AttrLongName {
			if cluster != 0 {
				return nil, fmt.Errorf("%w: long-name slot with first cluster %d", ErrCorruptDirectory, cluster)
			}
			if slot[0] == deletedMarker {
				// Deleted long-name fragment, ignored. Does not
				// disturb a pending accumulation.
				continue
			}
			if err := lfn.add(slot[0x00], slot[0x0D], lfnFragment(slot), off); err != nil {
				return nil, err
			}
			continue
		}

		entry := DirEntry{
			AttrByte:   attr,
			Attrs:      attrString(attr),
			Cluster:    cluster,
			Size:       binary.LittleEndian.Uint32(slot[0x1C:]),
			Offset:     off,
			SlotOffset: off,
		}

		switch {
		case attr == AttrVolumeID:
			entry.Kind = KindVolumeLabel
			entry.Name = strings.TrimRight(string(slot[0:8]), " ") + strings.TrimRight(string(slot[8:11]), " ")
			entries = append(entries, entry)

		case slot[0] == deletedMarker:
			// Deleted file or directory: scanned, never returned.

		default:
			if lfn.pending() {
				name, err := lfn.name()
				if err != nil {
					return nil, err
				}
				entry.Name = name
				entry.Offset = lfn.offset
			} else {
				entry.Name = shortName(slot)
			}
			if attr&AttrDirectory != 0 {
				entry.Kind = KindDir
			} else {
				entry.Kind = KindFile
			}
			entries = append(entries, entry)
		}

		lfn.reset()
	}

	return entries, nil
}
