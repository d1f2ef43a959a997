package sniff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffExtension_Recognized(t *testing.T) {
	hints := SniffExtension("/tmp/payload.exe", DefaultWeights())
	require.Len(t, hints, 1)
	assert.Equal(t, "PE", hints[0].Label)
	assert.Equal(t, SourceExtension, hints[0].Source)
}

func TestSniffExtension_Unknown(t *testing.T) {
	assert.Empty(t, SniffExtension("/tmp/notes.txt", DefaultWeights()))
}

func TestSniffContent_ELF(t *testing.T) {
	data := append([]byte{0x7f, 'E', 'L', 'F'}, make([]byte, 60)...)
	hints := SniffContent(data, DefaultWeights())
	require.Len(t, hints, 1)
	assert.Equal(t, "ELF", hints[0].Label)
	assert.Equal(t, SourceContent, hints[0].Source)
}

func TestSniffHeader_JARDistinguishedFromZIP(t *testing.T) {
	zip := append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 30)...)
	assert.Empty(t, SniffHeader(zip, DefaultWeights()))

	jar := append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 22)...)
	jar = append(jar, []byte{20, 0}...) // name length 20
	jar = append(jar, []byte{0, 0}...)  // extra field length 0
	jar = append(jar, []byte("META-INF/MANIFEST.MF")...)
	hints := SniffHeader(jar, DefaultWeights())
	require.Len(t, hints, 1)
	assert.Equal(t, "JAR", hints[0].Label)
}

func TestCombined_UnionsAllSniffers(t *testing.T) {
	data := append([]byte{0x7f, 'E', 'L', 'F'}, make([]byte, 60)...)
	hints := Combined("/tmp/lib.so", data, DefaultWeights())
	require.Len(t, hints, 2)
}
