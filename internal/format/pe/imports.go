package pe

import (
	"encoding/binary"
	"strconv"

	"github.com/standardbeagle/bintriage/internal/format/common"
)

const importDescriptorSize = 20

// thunkOrdinalBit is the high bit of a thunk entry marking it as an
// import-by-ordinal rather than import-by-name (bit 31 for PE32, bit 63
// for PE32+).
const thunkOrdinalBit32 = uint64(1) << 31
const thunkOrdinalBit64 = uint64(1) << 63

// ImportModule is one DLL's import descriptor plus its resolved thunks.
type ImportModule struct {
	Name    string
	Entries []common.Import
}

// Imports parses the normal import table (data directory 1), pairing
// INT (OriginalFirstThunk, by-name/ordinal) against IAT (FirstThunk,
// call-site slots) in lockstep (spec §4.2.1 / original's pe_iat.rs).
func (f *File) Imports(sections *SectionTable) ([]ImportModule, error) {
	return f.parseImportDirectory(sections, DirImport)
}

// DelayImports parses the delay-load import table (data directory 13).
func (f *File) DelayImports(sections *SectionTable) ([]ImportModule, error) {
	return f.parseImportDirectory(sections, DirDelayImport)
}

func (f *File) parseImportDirectory(sections *SectionTable, dirIndex int) ([]ImportModule, error) {
	dd, ok := f.DataDirectory(dirIndex)
	if !ok || dd.RVA == 0 {
		return nil, nil
	}
	off, ok := sections.RVAToOffset(dd.RVA)
	if !ok {
		return nil, nil
	}

	le := binary.LittleEndian
	var modules []ImportModule

	for i := 0; i < 4096; i++ { // bounded: a descriptor table cannot iterate forever
		descOff := int64(off) + int64(i*importDescriptorSize)
		buf, err := f.r.ReadAt(descOff, importDescriptorSize)
		if err != nil || len(buf) < importDescriptorSize {
			break
		}
		originalFirstThunk := le.Uint32(buf[0:4])
		nameRVA := le.Uint32(buf[12:16])
		firstThunk := le.Uint32(buf[16:20])
		if originalFirstThunk == 0 && nameRVA == 0 && firstThunk == 0 {
			break
		}

		name := f.readCStringAtRVA(sections, nameRVA, 256)
		entries := f.readThunkPairs(sections, originalFirstThunk, firstThunk)
		modules = append(modules, ImportModule{Name: name, Entries: entries})
	}

	return modules, nil
}

// readThunkPairs walks the INT (names/ordinals) and IAT (bound
// addresses) thunk arrays together, index by index.
func (f *File) readThunkPairs(sections *SectionTable, intRVA, iatRVA uint32) []common.Import {
	entrySize := 4
	if f.Opt.Is64 {
		entrySize = 8
	}

	intOff, hasINT := sections.RVAToOffset(intRVA)
	if intRVA == 0 {
		hasINT = false
	}
	iatOff, hasIAT := sections.RVAToOffset(iatRVA)
	if iatRVA == 0 {
		hasIAT = false
	}
	if !hasIAT {
		return nil
	}

	le := binary.LittleEndian
	var out []common.Import
	for idx := 0; idx < 65536; idx++ {
		iatEntryOff := int64(iatOff) + int64(idx*entrySize)
		buf, err := f.r.ReadAt(iatEntryOff, entrySize)
		if err != nil || len(buf) < entrySize {
			break
		}
		var iatVal uint64
		if f.Opt.Is64 {
			iatVal = le.Uint64(buf)
		} else {
			iatVal = uint64(le.Uint32(buf))
		}
		if iatVal == 0 {
			break
		}

		imp := common.Import{
			HasBoundVA: true,
			BoundVA:    f.Opt.ImageBase + uint64(iatRVA) + uint64(idx*entrySize),
		}

		thunkVal := iatVal
		if hasINT {
			intBuf, err := f.r.ReadAt(int64(intOff)+int64(idx*entrySize), entrySize)
			if err == nil && len(intBuf) == entrySize {
				if f.Opt.Is64 {
					thunkVal = le.Uint64(intBuf)
				} else {
					thunkVal = uint64(le.Uint32(intBuf))
				}
			}
		}

		ordinalBit := thunkOrdinalBit32
		if f.Opt.Is64 {
			ordinalBit = thunkOrdinalBit64
		}
		if thunkVal&ordinalBit != 0 {
			imp.HasOrdinal = true
			imp.Ordinal = uint16(thunkVal & 0xFFFF)
		} else {
			hintNameRVA := uint32(thunkVal & 0xFFFFFFFF)
			if hintOff, ok := sections.RVAToOffset(hintNameRVA); ok {
				hintBuf, err := f.r.ReadAt(int64(hintOff), 2)
				if err == nil && len(hintBuf) == 2 {
					imp.HasHint = true
					imp.Hint = le.Uint16(hintBuf)
				}
				imp.Name = f.readCStringAtRVA(sections, hintNameRVA+2, 256)
			}
		}

		out = append(out, imp)
	}
	return out
}

func (f *File) readCStringAtRVA(sections *SectionTable, rva uint32, limit int) string {
	off, ok := sections.RVAToOffset(rva)
	if !ok {
		return ""
	}
	buf, err := f.r.ReadAt(int64(off), limit)
	if err != nil {
		return ""
	}
	end := 0
	for end < len(buf) && buf[end] != 0 {
		end++
	}
	return string(buf[:end])
}

// IATMap builds a best-effort map of IAT call-site VAs to the imported
// symbol resolved into that slot, across both normal and delay-load
// import tables.
func (f *File) IATMap(sections *SectionTable) (map[uint64]string, error) {
	out := make(map[uint64]string)
	for _, dir := range []int{DirImport, DirDelayImport} {
		modules, err := f.parseImportDirectory(sections, dir)
		if err != nil {
			continue
		}
		for _, mod := range modules {
			for _, e := range mod.Entries {
				if !e.HasBoundVA {
					continue
				}
				label := e.Name
				if label == "" && e.HasOrdinal {
					label = ordinalLabel(mod.Name, e.Ordinal)
				}
				if label == "" {
					continue
				}
				out[e.BoundVA] = label
			}
		}
	}
	return out, nil
}

func ordinalLabel(module string, ordinal uint16) string {
	if module == "" {
		return ""
	}
	return module + "#" + strconv.Itoa(int(ordinal))
}
