package macho

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bintriage/internal/ioref"
)

func buildMinimalMachO64() []byte {
	le := binary.LittleEndian
	hdr := make([]byte, headerSize64)
	le.PutUint32(hdr[0:4], magic64)
	le.PutUint32(hdr[4:8], uint32(CPUX8664))
	le.PutUint32(hdr[8:12], 0)
	le.PutUint32(hdr[12:16], uint32(MHExecute))
	le.PutUint32(hdr[16:20], 1) // ncmds
	le.PutUint32(hdr[24:28], 0x200000)

	name := "/usr/lib/libSystem.B.dylib\x00\x00"
	payload := make([]byte, 4+4+4+4+len(name))
	le.PutUint32(payload[0:4], 24) // name offset within command
	cmdSize := uint32(8 + len(payload))
	le.PutUint32(hdr[20:24], cmdSize)
	copy(payload[16:], name)

	cmdHead := make([]byte, 8)
	le.PutUint32(cmdHead[0:4], uint32(LCLoadDylib))
	le.PutUint32(cmdHead[4:8], cmdSize)

	out := append(hdr, cmdHead...)
	out = append(out, payload...)
	return out
}

func TestParse_MinimalMachO64(t *testing.T) {
	data := buildMinimalMachO64()
	r := ioref.FromBytes(data, ioref.DefaultLimits())
	f, err := Parse(r)
	require.NoError(t, err)
	assert.True(t, f.Header.Is64)
	assert.Equal(t, CPUX8664, f.Header.CPU)
	assert.True(t, f.IsPIE())
	require.Len(t, f.Commands, 1)
	dylibs := f.LoadDylibs()
	require.Len(t, dylibs, 1)
	assert.Equal(t, "/usr/lib/libSystem.B.dylib", dylibs[0])
}

func TestParse_RejectsBadMagic(t *testing.T) {
	r := ioref.FromBytes(make([]byte, 32), ioref.DefaultLimits())
	_, err := Parse(r)
	require.Error(t, err)
}
