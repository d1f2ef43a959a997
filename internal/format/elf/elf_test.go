package elf

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bintriage/internal/ioref"
)

// buildMinimalELF64 constructs a tiny well-formed little-endian ELF64
// executable: header + one PT_LOAD segment + one .shstrtab section, with
// no symbols. Callers append to raw after calling this to extend it.
func buildMinimalELF64() []byte {
	const ehSize = 64
	const phEntSize = 56
	const shEntSize = 64

	buf := make([]byte, ehSize)
	copy(buf[0:4], []byte("\x7fELF"))
	buf[4] = byte(Class64)
	buf[5] = byte(DataLittle)
	buf[6] = 1 // EI_VERSION

	le := binary.LittleEndian
	le.PutUint16(buf[16:18], uint16(ET_EXEC))
	le.PutUint16(buf[18:20], uint16(EM_X86_64))
	le.PutUint32(buf[20:24], 1)
	le.PutUint64(buf[24:32], 0x401000) // e_entry
	le.PutUint64(buf[32:40], ehSize)   // e_phoff
	// e_shoff filled below once layout is known
	le.PutUint16(buf[52:54], ehSize)
	le.PutUint16(buf[54:56], phEntSize)
	le.PutUint16(buf[56:58], 1) // e_phnum
	le.PutUint16(buf[58:60], shEntSize)
	le.PutUint16(buf[60:62], 1) // e_shnum
	le.PutUint16(buf[62:64], 0) // e_shstrndx

	ph := make([]byte, phEntSize)
	le.PutUint32(ph[0:4], uint32(PT_LOAD))
	le.PutUint32(ph[4:8], uint32(PF_R|PF_X))
	le.PutUint64(ph[8:16], 0)       // p_offset
	le.PutUint64(ph[16:24], 0x400000) // p_vaddr
	le.PutUint64(ph[24:32], 0x400000) // p_paddr
	le.PutUint64(ph[32:40], 0x2000) // p_filesz
	le.PutUint64(ph[40:48], 0x3000) // p_memsz (trailing 0x1000 is BSS-like)
	le.PutUint64(ph[48:56], 0x1000)

	shOff := int64(len(buf) + len(ph))
	le.PutUint64(buf[40:48], uint64(shOff))

	sh := make([]byte, shEntSize)
	// sh_name = 0 (NUL section, valid for a null string table entry)

	out := append(buf, ph...)
	out = append(out, sh...)
	return out
}

func newReaderFromBytes(t *testing.T, data []byte) *ioref.Reader {
	t.Helper()
	return ioref.FromBytes(data, ioref.DefaultLimits())
}

func TestParse_RejectsBadMagic(t *testing.T) {
	r := newReaderFromBytes(t, make([]byte, 64))
	_, err := Parse(r)
	require.Error(t, err)
}

func TestParse_MinimalELF64(t *testing.T) {
	data := buildMinimalELF64()
	r := newReaderFromBytes(t, data)

	f, err := Parse(r)
	require.NoError(t, err)
	assert.Equal(t, 64, f.Bits())
	assert.Equal(t, ET_EXEC, f.Type)
	assert.False(t, f.IsPIE())
	assert.Equal(t, binary.LittleEndian, f.ByteOrder())
}

func TestParse_RejectsUnsupportedClass(t *testing.T) {
	data := buildMinimalELF64()
	data[4] = 9 // invalid EI_CLASS
	r := newReaderFromBytes(t, data)
	_, err := Parse(r)
	require.Error(t, err)
}

func TestSegments_VAToOffset(t *testing.T) {
	data := buildMinimalELF64()
	r := newReaderFromBytes(t, data)
	f, err := Parse(r)
	require.NoError(t, err)

	segs, err := f.Segments()
	require.NoError(t, err)
	require.Len(t, segs.All, 1)

	off, ok := segs.VAToOffset(0x400000)
	require.True(t, ok)
	assert.Equal(t, uint64(0), off)

	off, ok = segs.VAToOffset(0x400500)
	require.True(t, ok)
	assert.Equal(t, uint64(0x500), off)

	// Within MemSz (0x3000) but beyond FileSz (0x2000): BSS-like, in
	// memory but not present in the file.
	_, ok = segs.VAToOffset(0x402500)
	assert.False(t, ok)

	// Outside the segment's memory window entirely.
	_, ok = segs.VAToOffset(0x500000)
	assert.False(t, ok)
}

func TestSections_ParsesShstrtab(t *testing.T) {
	data := buildMinimalELF64()
	r := newReaderFromBytes(t, data)
	f, err := Parse(r)
	require.NoError(t, err)

	sections, err := f.Sections()
	require.NoError(t, err)
	require.Len(t, sections.All, 1)
	assert.Equal(t, "", sections.All[0].Name)

	_, err = sections.ByName("nonexistent")
	assert.Error(t, err)
}
