package elf

// DynEntry is one tagged entry of the dynamic section.
type DynEntry struct {
	Tag DynTag
	Val uint64
}

// Dynamic is the parsed .dynamic section plus the strings it references.
type Dynamic struct {
	Entries  []DynEntry
	Needed   []string
	SONAME   string
	RPath    string
	RunPath  string
	BindNow  bool // DT_BIND_NOW present or DF_BIND_NOW set in DT_FLAGS
}

// ParseDynamic walks the PT_DYNAMIC segment, reading tagged entries until
// DT_NULL (spec §4.2.2: "Dynamic section: iterate tagged entries until
// DT_NULL"), then resolves string-valued tags against DT_STRTAB.
func (f *File) ParseDynamic(segs *SegmentTable) (*Dynamic, error) {
	var dynSeg *Segment
	for i := range segs.All {
		if segs.All[i].Type == PT_DYNAMIC {
			dynSeg = &segs.All[i]
			break
		}
	}
	if dynSeg == nil {
		return nil, nil
	}

	entSize := 16
	if f.Ident.Class == Class64 {
		entSize = 16
	} else {
		entSize = 8
	}
	order := f.order

	var entries []DynEntry
	maxEntries := int(dynSeg.FileSz) / entSize
	for i := 0; i < maxEntries; i++ {
		off := int64(dynSeg.Offset) + int64(i*entSize)
		buf, err := f.r.ReadAt(off, entSize)
		if err != nil || len(buf) < entSize {
			break
		}
		var e DynEntry
		if f.Ident.Class == Class64 {
			e.Tag = DynTag(int64(order.Uint64(buf[0:8])))
			e.Val = order.Uint64(buf[8:16])
		} else {
			e.Tag = DynTag(int64(int32(order.Uint32(buf[0:4]))))
			e.Val = uint64(order.Uint32(buf[4:8]))
		}
		entries = append(entries, e)
		if e.Tag == DT_NULL {
			break
		}
	}

	d := &Dynamic{Entries: entries}

	var strtabVA uint64
	for _, e := range entries {
		if e.Tag == DT_STRTAB {
			strtabVA = e.Val
			break
		}
	}
	strOff, ok := segs.VAToOffset(strtabVA)
	readStr := func(strOff uint64, idx uint64) string {
		buf, err := f.r.ReadAt(int64(strOff)+int64(idx), 256)
		if err != nil {
			return ""
		}
		return cstr(buf, 0)
	}

	for _, e := range entries {
		switch e.Tag {
		case DT_NEEDED:
			if ok {
				d.Needed = append(d.Needed, readStr(strOff, e.Val))
			}
		case DT_SONAME:
			if ok {
				d.SONAME = readStr(strOff, e.Val)
			}
		case DT_RPATH:
			if ok {
				d.RPath = readStr(strOff, e.Val)
			}
		case DT_RUNPATH:
			if ok {
				d.RunPath = readStr(strOff, e.Val)
			}
		case DT_BIND_NOW:
			d.BindNow = true
		case DT_FLAGS:
			if DynFlag(e.Val)&DF_BIND_NOW != 0 {
				d.BindNow = true
			}
		}
	}

	return d, nil
}
