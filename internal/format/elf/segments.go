package elf

import "sort"

// Segment is a parsed program header.
type Segment struct {
	Type   ProgType
	Flags  ProgFlag
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// SegmentTable is the parsed, VA-sorted program header list.
type SegmentTable struct {
	All        []Segment
	loadSorted []int // indices into All of PT_LOAD segments, sorted by VAddr
}

// Segments parses the program header table.
func (f *File) Segments() (*SegmentTable, error) {
	if f.PhNum == 0 {
		return &SegmentTable{}, nil
	}
	entSize := int(f.PhEntSize)
	all := make([]Segment, 0, f.PhNum)
	order := f.order

	for i := 0; i < int(f.PhNum); i++ {
		off := int64(f.PhOff) + int64(i*entSize)
		buf, err := f.r.MustReadAt(off, entSize)
		if err != nil {
			return &SegmentTable{All: all}, err
		}
		var s Segment
		if f.Ident.Class == Class64 {
			s.Type = ProgType(order.Uint32(buf[0:4]))
			s.Flags = ProgFlag(order.Uint32(buf[4:8]))
			s.Offset = order.Uint64(buf[8:16])
			s.VAddr = order.Uint64(buf[16:24])
			s.PAddr = order.Uint64(buf[24:32])
			s.FileSz = order.Uint64(buf[32:40])
			s.MemSz = order.Uint64(buf[40:48])
			s.Align = order.Uint64(buf[48:56])
		} else {
			s.Type = ProgType(order.Uint32(buf[0:4]))
			s.Offset = uint64(order.Uint32(buf[4:8]))
			s.VAddr = uint64(order.Uint32(buf[8:12]))
			s.PAddr = uint64(order.Uint32(buf[12:16]))
			s.FileSz = uint64(order.Uint32(buf[16:20]))
			s.MemSz = uint64(order.Uint32(buf[20:24]))
			s.Flags = ProgFlag(order.Uint32(buf[24:28]))
			s.Align = uint64(order.Uint32(buf[28:32]))
		}
		all = append(all, s)
	}

	table := &SegmentTable{All: all}
	for i, s := range all {
		if s.Type == PT_LOAD {
			table.loadSorted = append(table.loadSorted, i)
		}
	}
	sort.Slice(table.loadSorted, func(a, b int) bool {
		return all[table.loadSorted[a]].VAddr < all[table.loadSorted[b]].VAddr
	})

	return table, nil
}

// VAToOffset translates a virtual address to a file offset via a binary
// search over PT_LOAD segments. It returns ok=false when va falls in a
// memory-only region such as .bss (in-memory but not in-file).
func (t *SegmentTable) VAToOffset(va uint64) (offset uint64, ok bool) {
	segs := t.loadSorted
	lo, hi := 0, len(segs)
	for lo < hi {
		mid := (lo + hi) / 2
		s := t.All[segs[mid]]
		if va < s.VAddr {
			hi = mid
		} else if va >= s.VAddr+s.MemSz {
			lo = mid + 1
		} else {
			delta := va - s.VAddr
			if delta >= s.FileSz {
				return 0, false // in .bss-like tail: in-memory, not in-file
			}
			return s.Offset + delta, true
		}
	}
	return 0, false
}
