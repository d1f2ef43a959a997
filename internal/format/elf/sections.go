package elf

import (
	"sort"

	"github.com/standardbeagle/bintriage/internal/bterrors"
	"github.com/standardbeagle/bintriage/internal/format/common"
)

// rawSection mirrors an on-disk section header before name resolution.
type rawSection struct {
	nameOff uint32
	typ     SectionType
	flags   SectionFlag
	addr    uint64
	offset  uint64
	size    uint64
	link    uint32
	info    uint32
	entsize uint64
}

func (f *File) readRawSections() ([]rawSection, error) {
	if f.ShNum == 0 {
		return nil, nil
	}
	out := make([]rawSection, 0, f.ShNum)
	entSize := int(f.ShEntSize)
	for i := 0; i < int(f.ShNum); i++ {
		off := int64(f.ShOff) + int64(i*entSize)
		buf, err := f.r.MustReadAt(off, entSize)
		if err != nil {
			return out, err
		}
		var s rawSection
		order := f.order
		if f.Ident.Class == Class64 {
			s.nameOff = order.Uint32(buf[0:4])
			s.typ = SectionType(order.Uint32(buf[4:8]))
			s.flags = SectionFlag(order.Uint64(buf[8:16]))
			s.addr = order.Uint64(buf[16:24])
			s.offset = order.Uint64(buf[24:32])
			s.size = order.Uint64(buf[32:40])
			s.link = order.Uint32(buf[40:44])
			s.info = order.Uint32(buf[44:48])
			s.entsize = order.Uint64(buf[56:64])
		} else {
			s.nameOff = order.Uint32(buf[0:4])
			s.typ = SectionType(order.Uint32(buf[4:8]))
			s.flags = SectionFlag(order.Uint32(buf[8:12]))
			s.addr = uint64(order.Uint32(buf[12:16]))
			s.offset = uint64(order.Uint32(buf[16:20]))
			s.size = uint64(order.Uint32(buf[20:24]))
			s.link = order.Uint32(buf[24:28])
			s.info = order.Uint32(buf[28:32])
			s.entsize = uint64(order.Uint32(buf[36:40]))
		}
		out = append(out, s)
	}
	return out, nil
}

// SectionTable is the parsed, name-resolved section list, sorted by
// virtual address for RVA-style lookups.
type SectionTable struct {
	All        []common.Section
	byName     map[string]int
	sortedByVA []int
}

func permsFromFlags(flags SectionFlag) common.Permissions {
	return common.Permissions{
		Read:    true, // ELF sections have no individual "readable" bit; ALLOC sections are readable
		Write:   flags&SHF_WRITE != 0,
		Execute: flags&SHF_EXECINSTR != 0,
	}
}

// Sections parses the section header table and resolves names via the
// string-table section at ShStrNdx.
func (f *File) Sections() (*SectionTable, error) {
	raws, err := f.readRawSections()
	if err != nil && len(raws) == 0 {
		return nil, err
	}

	var strtab []byte
	if int(f.ShStrNdx) < len(raws) {
		s := raws[f.ShStrNdx]
		strtab, _ = f.r.ReadAt(int64(s.offset), int(s.size))
	}

	table := &SectionTable{byName: make(map[string]int)}
	for i, s := range raws {
		name := cstr(strtab, int(s.nameOff))
		info := common.Section{
			Name:        name,
			Index:       i,
			FileOffset:  s.offset,
			FileSize:    s.size,
			VirtualAddr: s.addr,
			VirtualSize: s.size,
			Perms:       permsFromFlags(s.flags),
		}
		if s.typ == SHT_NOBITS {
			info.VirtualSize = s.size
			info.FileSize = 0
		}
		table.All = append(table.All, info)
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

	return table, err
}

// ByName looks up a section by exact name.
func (t *SectionTable) ByName(name string) (common.Section, error) {
	idx, ok := t.byName[name]
	if !ok {
		return common.Section{}, &bterrors.SectionNotFoundError{Name: name}
	}
	return t.All[idx], nil
}

// cstr reads a NUL-terminated string starting at off within buf.
func cstr(buf []byte, off int) string {
	if off < 0 || off >= len(buf) {
		return ""
	}
	end := off
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[off:end])
}
