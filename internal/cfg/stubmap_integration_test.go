package cfg

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bintriage/internal/addr"
	"github.com/standardbeagle/bintriage/internal/format/elf"
	"github.com/standardbeagle/bintriage/internal/format/pe"
	"github.com/standardbeagle/bintriage/internal/ioref"
)

// buildPEWithKernel32Import constructs a minimal PE32+ image whose single
// ".text" section carries a real import directory for
// kernel32.dll!CreateFileA, so pe.IATMap has something genuine to
// resolve (spec §8 scenario 5).
func buildPEWithKernel32Import() []byte {
	le := binary.LittleEndian
	const lfanew = 0x80
	const dosSignature = 0x5A4D
	const pe32PlusMagic = 0x20B

	dos := make([]byte, lfanew)
	le.PutUint16(dos[0:2], dosSignature)
	le.PutUint32(dos[0x3c:0x40], lfanew)

	sig := []byte("PE\x00\x00")

	coff := make([]byte, 20)
	le.PutUint16(coff[0:2], uint16(pe.MachineX64))
	le.PutUint16(coff[2:4], 1) // number of sections
	le.PutUint16(coff[16:18], 112+16*8)

	optSize := 112 + 16*8
	opt := make([]byte, optSize)
	le.PutUint16(opt[0:2], pe32PlusMagic)
	le.PutUint32(opt[16:20], 0x1000) // AddressOfEntryPoint
	le.PutUint64(opt[24:32], 0)      // ImageBase, kept at 0 to keep BoundVA == RVA
	le.PutUint32(opt[32:36], 0x1000) // SectionAlignment
	le.PutUint32(opt[36:40], 0x200)  // FileAlignment
	le.PutUint32(opt[56:60], 0x3000) // SizeOfImage
	le.PutUint32(opt[60:64], uint32(lfanew+4+20+optSize+40))
	le.PutUint32(opt[108:112], 16)

	// Data directory 1 (import table): RVA 0x1000, size of one
	// descriptor plus its zero terminator.
	le.PutUint32(opt[112+1*8:112+1*8+4], 0x1000)
	le.PutUint32(opt[112+1*8+4:112+1*8+8], 40)

	sectionHeader := make([]byte, 40)
	copy(sectionHeader[0:8], []byte(".text"))
	headersEnd := uint32(lfanew + 4 + 20 + optSize + 40)
	le.PutUint32(sectionHeader[8:12], 0x200)   // VirtualSize
	le.PutUint32(sectionHeader[12:16], 0x1000) // VirtualAddress
	le.PutUint32(sectionHeader[16:20], 0x200)  // SizeOfRawData
	le.PutUint32(sectionHeader[20:24], headersEnd)
	le.PutUint32(sectionHeader[36:40], pe.SectionMemRead|pe.SectionMemExecute)

	body := make([]byte, 0x200)
	// Import descriptor at RVA 0x1000 (body offset 0), followed by a
	// zero descriptor terminating the table at RVA 0x1014.
	le.PutUint32(body[0:4], 0x1040)   // OriginalFirstThunk (INT)
	le.PutUint32(body[12:16], 0x1080) // Name RVA
	le.PutUint32(body[16:20], 0x1060) // FirstThunk (IAT)

	// INT at RVA 0x1040: one hint/name thunk, then a zero terminator.
	le.PutUint64(body[0x40:0x48], 0x1090)
	// IAT at RVA 0x1060: a nonzero bound placeholder, then a zero terminator.
	le.PutUint64(body[0x60:0x68], 1)

	copy(body[0x80:], []byte("KERNEL32.dll\x00"))
	// Hint/name struct at RVA 0x1090: 2-byte hint, then the import name.
	copy(body[0x92:], []byte("CreateFileA\x00"))

	out := append(dos, sig...)
	out = append(out, coff...)
	out = append(out, opt...)
	out = append(out, sectionHeader...)
	out = append(out, body...)
	return out
}

func TestAnalyzeFunctions_ResolvesRealPEImportAddressTableEntry(t *testing.T) {
	data := buildPEWithKernel32Import()
	r := ioref.FromBytes(data, ioref.DefaultLimits())

	f, err := pe.Parse(r)
	require.NoError(t, err)
	sections, err := f.Sections()
	require.NoError(t, err)

	iat, err := f.IATMap(sections)
	require.NoError(t, err)
	require.Contains(t, iat, uint64(0x1060))
	assert.Equal(t, "CreateFileA", iat[0x1060])

	backend := &fakeBackend{program: map[uint64]Instruction{
		0x1000: {Mnemonic: "call", Length: 4, Operands: imm(0x1060)},
		0x1004: {Mnemonic: "ret", Length: 4},
	}}
	entry, err := addr.New(addr.VA, 0x1000, 64)
	require.NoError(t, err)
	regions := []ExecRegion{{Start: 0x1000, End: 0x2000}}

	_, cg := AnalyzeFunctions(make([]byte, 0x2000), ArchX86_64, entry, nil, regions, backend, DefaultBudgets(), identityOffset, iat)
	require.Len(t, cg.Edges, 1)
	assert.Equal(t, "CreateFileA", cg.Edges[0].Callee)
	assert.Equal(t, CallPLT, cg.Edges[0].Kind)
}

// strTableBuilder appends NUL-terminated names and reports the offset
// each was written at, mirroring how a linker lays out a string table.
type strTableBuilder struct {
	buf []byte
}

func newStrTableBuilder() *strTableBuilder {
	return &strTableBuilder{buf: []byte{0}}
}

func (b *strTableBuilder) add(name string) uint32 {
	off := uint32(len(b.buf))
	b.buf = append(b.buf, []byte(name)...)
	b.buf = append(b.buf, 0)
	return off
}

func elfSymEntry(nameOff uint32, bind elf.SymBind, typ elf.SymType, shndx uint16, value, size uint64) []byte {
	buf := make([]byte, 24)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], nameOff)
	buf[4] = byte(bind)<<4 | byte(typ)
	le.PutUint16(buf[6:8], shndx)
	le.PutUint64(buf[8:16], value)
	le.PutUint64(buf[16:24], size)
	return buf
}

// buildELFWithPrintfPLT constructs a minimal little-endian ELF64 shared
// object with a real .dynsym/.dynstr/.plt/.rela.plt section set
// importing printf and exporting one function (spec §8 scenario 6).
func buildELFWithPrintfPLT() []byte {
	const ehSize = 64
	const shEntSize = 64
	le := binary.LittleEndian

	dynstr := newStrTableBuilder()
	printfOff := dynstr.add("printf")
	myfuncOff := dynstr.add("myfunc")

	dynsym := append([]byte{}, elfSymEntry(0, 0, 0, 0, 0, 0)...) // STN_UNDEF
	dynsym = append(dynsym, elfSymEntry(printfOff, elf.STB_GLOBAL, elf.STT_FUNC, 0, 0, 0)...)
	dynsym = append(dynsym, elfSymEntry(myfuncOff, elf.STB_GLOBAL, elf.STT_FUNC, 1, 0x2000, 0x10)...)

	shstrtab := newStrTableBuilder()
	nameShstrtab := shstrtab.add(".shstrtab")
	nameDynstr := shstrtab.add(".dynstr")
	nameDynsym := shstrtab.add(".dynsym")
	namePlt := shstrtab.add(".plt")
	nameRelaPlt := shstrtab.add(".rela.plt")

	const pltSize = 0x20
	const pltVA = 0x3000
	plt := make([]byte, pltSize)

	relaPlt := make([]byte, 24)
	le.PutUint64(relaPlt[0:8], 0)                    // r_offset (unused by PLTMap)
	rInfo := uint64(1)<<32 | uint64(7)               // symIdx=1 (printf), R_X86_64_JUMP_SLOT
	le.PutUint64(relaPlt[8:16], rInfo)
	le.PutUint64(relaPlt[16:24], 0) // r_addend

	header := make([]byte, ehSize)
	copy(header[0:4], []byte("\x7fELF"))
	header[4] = byte(elf.Class64)
	header[5] = byte(elf.DataLittle)
	header[6] = 1
	le.PutUint16(header[16:18], uint16(elf.ET_DYN))
	le.PutUint16(header[18:20], uint16(elf.EM_X86_64))
	le.PutUint32(header[20:24], 1)
	le.PutUint64(header[24:32], 0x1000) // e_entry
	le.PutUint64(header[32:40], 0)      // e_phoff (no program headers)
	// e_shoff filled in below
	le.PutUint16(header[52:54], ehSize)
	le.PutUint16(header[54:56], 0) // e_phentsize
	le.PutUint16(header[56:58], 0) // e_phnum
	le.PutUint16(header[58:60], shEntSize)
	le.PutUint16(header[60:62], 6) // e_shnum: null, .shstrtab, .dynstr, .dynsym, .plt, .rela.plt
	le.PutUint16(header[62:64], 1) // e_shstrndx

	shOff := int64(len(header))
	le.PutUint64(header[40:48], uint64(shOff))

	shTableSize := int64(6 * shEntSize)
	dataStart := shOff + shTableSize

	shstrtabOff := dataStart
	dynstrOff := shstrtabOff + int64(len(shstrtab.buf))
	dynsymOff := dynstrOff + int64(len(dynstr.buf))
	pltOff := dynsymOff + int64(len(dynsym))
	relaPltOff := pltOff + pltSize

	sh := func(nameOff uint32, typ elf.SectionType, flags elf.SectionFlag, addr, offset, size uint64, link, info uint32, entsize uint64) []byte {
		buf := make([]byte, shEntSize)
		le.PutUint32(buf[0:4], nameOff)
		le.PutUint32(buf[4:8], uint32(typ))
		le.PutUint64(buf[8:16], uint64(flags))
		le.PutUint64(buf[16:24], addr)
		le.PutUint64(buf[24:32], offset)
		le.PutUint64(buf[32:40], size)
		le.PutUint32(buf[40:44], link)
		le.PutUint32(buf[44:48], info)
		le.PutUint64(buf[56:64], entsize)
		return buf
	}

	var shTable []byte
	shTable = append(shTable, sh(0, elf.SHT_NULL, 0, 0, 0, 0, 0, 0, 0)...)
	shTable = append(shTable, sh(nameShstrtab, elf.SHT_STRTAB, 0, 0, uint64(shstrtabOff), uint64(len(shstrtab.buf)), 0, 0, 0)...)
	shTable = append(shTable, sh(nameDynstr, elf.SHT_STRTAB, 0, 0, uint64(dynstrOff), uint64(len(dynstr.buf)), 0, 0, 0)...)
	shTable = append(shTable, sh(nameDynsym, elf.SHT_DYNSYM, elf.SHF_ALLOC, 0, uint64(dynsymOff), uint64(len(dynsym)), 2, 1, 24)...)
	shTable = append(shTable, sh(namePlt, elf.SHT_PROGBITS, elf.SHF_ALLOC|elf.SHF_EXECINSTR, pltVA, uint64(pltOff), pltSize, 0, 0, 0)...)
	shTable = append(shTable, sh(nameRelaPlt, elf.SHT_RELA, elf.SHF_ALLOC, 0, uint64(relaPltOff), uint64(len(relaPlt)), 3, 4, 24)...)

	out := append([]byte{}, header...)
	out = append(out, shTable...)
	out = append(out, shstrtab.buf...)
	out = append(out, dynstr.buf...)
	out = append(out, dynsym...)
	out = append(out, plt...)
	out = append(out, relaPlt...)
	return out
}

func TestAnalyzeFunctions_ResolvesRealELFPLTMapEntry(t *testing.T) {
	data := buildELFWithPrintfPLT()
	r := ioref.FromBytes(data, ioref.DefaultLimits())

	f, err := elf.Parse(r)
	require.NoError(t, err)
	sections, err := f.Sections()
	require.NoError(t, err)

	pltEntries, err := f.PLTMap(sections)
	require.NoError(t, err)
	require.Len(t, pltEntries, 1)
	assert.Equal(t, "printf@plt", pltEntries[0].Name)

	stubs := map[uint64]string{pltEntries[0].Address: pltEntries[0].Name}

	backend := &fakeBackend{program: map[uint64]Instruction{
		0x1000: {Mnemonic: "call", Length: 4, Operands: imm(int64(pltEntries[0].Address))},
		0x1004: {Mnemonic: "ret", Length: 4},
	}}
	entry, err := addr.New(addr.VA, 0x1000, 64)
	require.NoError(t, err)
	regions := []ExecRegion{{Start: 0x1000, End: 0x2000}}

	_, cg := AnalyzeFunctions(make([]byte, 0x2000), ArchX86_64, entry, nil, regions, backend, DefaultBudgets(), identityOffset, stubs)
	require.Len(t, cg.Edges, 1)
	assert.Equal(t, "printf@plt", cg.Edges[0].Callee)
	assert.Equal(t, CallPLT, cg.Edges[0].Kind)
}
