package elf

import "github.com/standardbeagle/bintriage/internal/format/common"

const symEntrySize32 = 16
const symEntrySize64 = 24

// symbolKindFromType maps an STT_* nibble to the shared common.SymbolKind.
func symbolKindFromType(t SymType) common.SymbolKind {
	switch t {
	case STT_FUNC:
		return common.SymFunction
	case STT_OBJECT:
		return common.SymObject
	case STT_SECTION:
		return common.SymSection
	case STT_FILE:
		return common.SymFile
	case STT_COMMON:
		return common.SymCommon
	case STT_TLS:
		return common.SymTLS
	default:
		return common.SymNoType
	}
}

func bindingFromBind(b SymBind) common.Binding {
	switch b {
	case STB_GLOBAL:
		return common.BindGlobal
	case STB_WEAK:
		return common.BindWeak
	default:
		return common.BindLocal
	}
}

// symbolsFromSection reads a .symtab/.dynsym-shaped section, resolving
// names against the string-table section named by sh_link (spec §4.2.2:
// "Symbol tables (.symtab, .dynsym) paired with their linked string
// tables (sh_link)").
func (f *File) symbolsFromSection(raw rawSection) ([]common.Symbol, error) {
	strSec, err := f.readRawSections()
	if err != nil {
		return nil, err
	}
	if int(raw.link) >= len(strSec) {
		return nil, nil
	}
	strtab, err := f.r.ReadAt(int64(strSec[raw.link].offset), int(strSec[raw.link].size))
	if err != nil {
		return nil, err
	}

	entSize := symEntrySize32
	if f.Ident.Class == Class64 {
		entSize = symEntrySize64
	}
	if raw.size == 0 || entSize == 0 {
		return nil, nil
	}
	count := int(raw.size) / entSize
	order := f.order

	out := make([]common.Symbol, 0, count)
	for i := 0; i < count; i++ {
		buf, err := f.r.ReadAt(int64(raw.offset)+int64(i*entSize), entSize)
		if err != nil || len(buf) < entSize {
			break
		}

		var nameOff uint32
		var value, size uint64
		var info uint8
		var shndx uint16

		if f.Ident.Class == Class64 {
			nameOff = order.Uint32(buf[0:4])
			info = buf[4]
			shndx = order.Uint16(buf[6:8])
			value = order.Uint64(buf[8:16])
			size = order.Uint64(buf[16:24])
		} else {
			nameOff = order.Uint32(buf[0:4])
			value = uint64(order.Uint32(buf[4:8]))
			size = uint64(order.Uint32(buf[8:12]))
			info = buf[12]
			shndx = order.Uint16(buf[14:16])
		}

		bind := SymBind(info >> 4)
		typ := SymType(info & 0xf)

		sym := common.Symbol{
			Name:       cstr(strtab, int(nameOff)),
			Kind:       symbolKindFromType(typ),
			Binding:    bindingFromBind(bind),
			Visibility: common.VisDefault,
			HasSize:    size != 0,
			Size:       size,
		}
		if shndx != 0 { // SHN_UNDEF == 0: undefined symbol carries no address
			sym.HasAddress = true
			sym.Address = value
		}
		out = append(out, sym)
	}
	return out, nil
}

// Symtab returns the static symbol table (.symtab), or nil if absent
// (e.g. a stripped binary).
func (f *File) Symtab(sections *SectionTable) ([]common.Symbol, error) {
	return f.symbolsFromNamed(sections, ".symtab", SHT_SYMTAB)
}

// Dynsym returns the dynamic symbol table (.dynsym), or nil if absent.
func (f *File) Dynsym(sections *SectionTable) ([]common.Symbol, error) {
	return f.symbolsFromNamed(sections, ".dynsym", SHT_DYNSYM)
}

func (f *File) symbolsFromNamed(sections *SectionTable, name string, want SectionType) ([]common.Symbol, error) {
	idx, ok := sections.byName[name]
	if !ok {
		return nil, nil
	}
	raws, err := f.readRawSections()
	if err != nil {
		return nil, err
	}
	if idx >= len(raws) || raws[idx].typ != want {
		return nil, nil
	}
	return f.symbolsFromSection(raws[idx])
}
