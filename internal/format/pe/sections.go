package pe

import (
	"encoding/binary"
	"sort"

	"github.com/standardbeagle/bintriage/internal/bterrors"
	"github.com/standardbeagle/bintriage/internal/format/common"
)

const sectionHeaderSize = 40

// SectionTable is the parsed, RVA-sorted section list.
type SectionTable struct {
	All        []common.Section
	byName     map[string]int
	sortedByVA []int
}

func permsFromCharacteristics(c uint32) common.Permissions {
	return common.Permissions{
		Read:    c&SectionMemRead != 0,
		Write:   c&SectionMemWrite != 0,
		Execute: c&SectionMemExecute != 0,
	}
}

// Sections parses the section header table immediately following the
// optional header.
func (f *File) Sections() (*SectionTable, error) {
	n := int(f.Coff.NumberOfSections)
	table := &SectionTable{byName: make(map[string]int)}
	if n == 0 {
		return table, nil
	}

	le := binary.LittleEndian
	for i := 0; i < n; i++ {
		off := f.sectionTableOffset + int64(i*sectionHeaderSize)
		buf, err := f.r.MustReadAt(off, sectionHeaderSize)
		if err != nil {
			return table, err
		}
		name := cstrFixed(buf[0:8])
		virtualSize := le.Uint32(buf[8:12])
		virtualAddr := le.Uint32(buf[12:16])
		rawSize := le.Uint32(buf[16:20])
		rawPtr := le.Uint32(buf[20:24])
		characteristics := le.Uint32(buf[36:40])

		sec := common.Section{
			Name:        name,
			Index:       i,
			FileOffset:  uint64(rawPtr),
			FileSize:    uint64(rawSize),
			VirtualAddr: uint64(virtualAddr),
			VirtualSize: uint64(virtualSize),
			Perms:       permsFromCharacteristics(characteristics),
		}
		table.All = append(table.All, sec)
		table.byName[name] = i
	}

	order := make([]int, len(table.All))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return table.All[order[a]].VirtualAddr < table.All[order[b]].VirtualAddr
	})
	table.sortedByVA = order

	return table, nil
}

// ByName looks up a section by exact name.
func (t *SectionTable) ByName(name string) (common.Section, error) {
	idx, ok := t.byName[name]
	if !ok {
		return common.Section{}, &bterrors.SectionNotFoundError{Name: name}
	}
	return t.All[idx], nil
}

// RVAToOffset resolves a relative virtual address to a file offset via a
// binary search over the VA-sorted section list, using
// max(VirtualSize, FileSize) as each section's in-memory window (spec
// §4.2.1's "virtual window" rule, mirrored from the original's
// rva_to_offset helper).
func (t *SectionTable) RVAToOffset(rva uint32) (uint64, bool) {
	secs := t.sortedByVA
	lo, hi := 0, len(secs)
	for lo < hi {
		mid := (lo + hi) / 2
		s := t.All[secs[mid]]
		window := s.VirtualSize
		if s.FileSize > window {
			window = s.FileSize
		}
		if window == 0 {
			// zero-sized section can't bracket anything; treat as
			// greater so the search continues past it deterministically
			lo = mid + 1
			continue
		}
		if uint64(rva) < s.VirtualAddr {
			hi = mid
		} else if uint64(rva) >= s.VirtualAddr+window {
			lo = mid + 1
		} else {
			return s.FileOffset + (uint64(rva) - s.VirtualAddr), true
		}
	}
	return 0, false
}

// OffsetToRVA is the inverse of RVAToOffset: given a raw file offset, it
// finds the section whose on-disk range [FileOffset, FileOffset+FileSize)
// contains it and returns the corresponding virtual address (mirrored
// from the original's offset_to_rva helper). Sections with no file
// backing (FileSize == 0) cannot be targets of this translation.
func (t *SectionTable) OffsetToRVA(offset uint64) (uint32, bool) {
	for _, s := range t.All {
		if s.FileSize == 0 {
			continue
		}
		rawEnd := s.FileOffset + s.FileSize
		if offset >= s.FileOffset && offset < rawEnd {
			delta := offset - s.FileOffset
			return uint32(s.VirtualAddr + delta), true
		}
	}
	return 0, false
}

func cstrFixed(b []byte) string {
	end := 0
	for end < len(b) && b[end] != 0 {
		end++
	}
	return string(b[:end])
}
