package pe

import (
	"encoding/binary"

	"github.com/standardbeagle/bintriage/internal/format/common"
)

const exportDirectorySize = 40

// Exports parses the export directory (data directory 0), resolving
// name-ordinal pairs and detecting forwarders: an export RVA that falls
// within the export directory's own RVA range is a forwarder string
// ("OtherModule.OtherName") rather than a callable address.
func (f *File) Exports(sections *SectionTable) ([]common.Export, error) {
	dd, ok := f.DataDirectory(DirExport)
	if !ok || dd.RVA == 0 {
		return nil, nil
	}
	dirOff, ok := sections.RVAToOffset(dd.RVA)
	if !ok {
		return nil, nil
	}
	buf, err := f.r.ReadAt(int64(dirOff), exportDirectorySize)
	if err != nil || len(buf) < exportDirectorySize {
		return nil, err
	}

	le := binary.LittleEndian
	base := le.Uint32(buf[16:20])
	numFunctions := le.Uint32(buf[20:24])
	numNames := le.Uint32(buf[24:28])
	addrFunctionsRVA := le.Uint32(buf[28:32])
	addrNamesRVA := le.Uint32(buf[32:36])
	addrNameOrdinalsRVA := le.Uint32(buf[36:40])

	const maxExports = 65536
	if numFunctions > maxExports || numNames > maxExports {
		return nil, nil
	}

	funcsOff, ok := sections.RVAToOffset(addrFunctionsRVA)
	if !ok {
		return nil, nil
	}
	functions := make([]uint32, 0, numFunctions)
	for i := uint32(0); i < numFunctions; i++ {
		b, err := f.r.ReadAt(int64(funcsOff)+int64(i*4), 4)
		if err != nil || len(b) < 4 {
			break
		}
		functions = append(functions, le.Uint32(b))
	}

	nameForOrdinalIdx := make(map[uint32]string, numNames)
	if numNames > 0 {
		namesOff, okN := sections.RVAToOffset(addrNamesRVA)
		ordOff, okO := sections.RVAToOffset(addrNameOrdinalsRVA)
		if okN && okO {
			for i := uint32(0); i < numNames; i++ {
				nb, err := f.r.ReadAt(int64(namesOff)+int64(i*4), 4)
				if err != nil || len(nb) < 4 {
					break
				}
				ob, err := f.r.ReadAt(int64(ordOff)+int64(i*2), 2)
				if err != nil || len(ob) < 2 {
					break
				}
				nameRVA := le.Uint32(nb)
				ordIdx := uint32(le.Uint16(ob))
				nameForOrdinalIdx[ordIdx] = f.readCStringAtRVA(sections, nameRVA, 512)
			}
		}
	}

	exportDirEnd := dd.RVA + dd.Size
	out := make([]common.Export, 0, len(functions))
	for i, rva := range functions {
		if rva == 0 {
			continue
		}
		e := common.Export{
			Ordinal: uint16(base) + uint16(i),
			RVA:     uint64(rva),
		}
		if name, ok := nameForOrdinalIdx[uint32(i)]; ok {
			e.Name = name
		}
		if rva >= dd.RVA && rva < exportDirEnd {
			e.IsForward = true
			e.Forwarder = f.readCStringAtRVA(sections, rva, 512)
		}
		out = append(out, e)
	}
	return out, nil
}
