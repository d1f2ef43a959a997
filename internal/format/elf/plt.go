package elf

import "strings"

// PLTEntry is one resolved PLT stub: its virtual address and the
// imported symbol it dispatches to.
type PLTEntry struct {
	Address uint64
	Name    string // e.g. "printf@plt"
}

var pltBookkeepingNames = map[string]bool{
	"__gmon_start__":  true,
	"__cxa_finalize":  true,
}

// PLTMap builds a best-effort x86-64 mapping from PLT stub addresses to
// imported symbol names, pairing .rela.plt order with .dynsym (spec
// §4.2.2: "PLT mapping (x86-64, conservative)"). It derives the entry
// size from plt_size / (relocation_count + 1), accepting only the
// common entry sizes across architectures; anything else yields no
// entries rather than a guess.
func (f *File) PLTMap(sections *SectionTable) ([]PLTEntry, error) {
	pltSec, err := sections.ByName(".plt")
	if err != nil || pltSec.FileSize == 0 {
		return nil, nil
	}

	dynsym, err := f.Dynsym(sections)
	if err != nil {
		return nil, err
	}
	if len(dynsym) == 0 {
		return nil, nil
	}

	relaRaw, err := f.readRawSections()
	if err != nil {
		return nil, err
	}
	var relaPlt *rawSection
	for i := range relaRaw {
		if strings.EqualFold(f.sectionName(sections, i), ".rela.plt") {
			relaPlt = &relaRaw[i]
			break
		}
	}

	var imported []string
	if relaPlt != nil && relaPlt.size >= 24 {
		buf, err := f.r.ReadAt(int64(relaPlt.offset), int(relaPlt.size))
		if err == nil {
			order := f.order
			for off := 0; off+24 <= len(buf); off += 24 {
				rInfo := order.Uint64(buf[off+8 : off+16])
				symIdx := uint32(rInfo >> 32)
				if int(symIdx) < len(dynsym) {
					imported = append(imported, dynsym[symIdx].Name)
				}
			}
		}
	}

	if len(imported) == 0 {
		for _, s := range dynsym {
			if s.HasAddress || s.Name == "" {
				continue
			}
			low := strings.ToLower(s.Name)
			if strings.HasPrefix(low, "_itm_") || pltBookkeepingNames[low] {
				continue
			}
			imported = append(imported, s.Name)
		}
	}
	if len(imported) == 0 {
		return nil, nil
	}

	entrySize := pltSec.FileSize / (uint64(len(imported)) + 1)
	if !acceptedPLTEntrySizes[entrySize] {
		return nil, nil
	}

	pltStart := pltSec.VirtualAddr
	pltEnd := pltStart + pltSec.FileSize
	slots := pltSec.FileSize / entrySize
	usable := uint64(0)
	if slots > 0 {
		usable = slots - 1
	}

	var out []PLTEntry
	addr := pltStart + entrySize // skip PLT0
	for i, name := range imported {
		if uint64(i) >= usable || addr >= pltEnd {
			break
		}
		out = append(out, PLTEntry{Address: addr, Name: name + "@plt"})
		addr += entrySize
	}
	return out, nil
}

func (f *File) sectionName(sections *SectionTable, rawIdx int) string {
	if rawIdx < len(sections.All) {
		return sections.All[rawIdx].Name
	}
	return ""
}
