package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSniffJavaClass(t *testing.T) {
	data := []byte{0xCA, 0xFE, 0xBA, 0xBE, 0x00, 0x00, 0x00, 61}
	major, minor, ok := SniffJavaClass(data)
	assert.True(t, ok)
	assert.Equal(t, uint16(61), major)
	assert.Equal(t, uint16(0), minor)

	_, _, ok = SniffJavaClass([]byte{0x00, 0x01, 0x02, 0x03})
	assert.False(t, ok)
}

func TestSniffPythonPyc(t *testing.T) {
	data := []byte{0xcb, 0x0d, '\r', '\n', 0, 0, 0, 0}
	version, ok := SniffPythonPyc(data)
	assert.True(t, ok)
	assert.Equal(t, "3.12", version)

	_, ok = SniffPythonPyc([]byte{0x01, 0x02, 0x03, 0x04})
	assert.False(t, ok)
}

func TestSniffZIP(t *testing.T) {
	assert.True(t, SniffZIP([]byte{'P', 'K', 0x03, 0x04}))
	assert.False(t, SniffZIP([]byte{'P', 'K', 0x01, 0x02}))
}
