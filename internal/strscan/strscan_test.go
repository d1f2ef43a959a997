package strscan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() Config {
	return Config{MinLength: 4, MaxSamples: 100}
}

func TestScan_ASCIIRun(t *testing.T) {
	data := append([]byte{0x00, 0x01}, []byte("hello world")...)
	data = append(data, 0x00, 0x02)
	s := Scan(data, defaultConfig())
	assert.Equal(t, 1, s.ASCIICount)
	require.Len(t, s.Samples, 1)
	assert.Equal(t, "hello world", s.Samples[0].Text)
	assert.Equal(t, EncodingASCII, s.Samples[0].Encoding)
}

func TestScan_UTF16LERun(t *testing.T) {
	var data []byte
	for _, c := range "secret" {
		data = append(data, byte(c), 0x00)
	}
	s := Scan(data, defaultConfig())
	assert.Equal(t, 1, s.UTF16LECount)
	require.Len(t, s.Samples, 1)
	assert.Equal(t, "secret", s.Samples[0].Text)
}

func TestScan_BelowMinLengthIsDropped(t *testing.T) {
	data := []byte("ab")
	s := Scan(data, defaultConfig())
	assert.Zero(t, s.ASCIICount)
	assert.Empty(t, s.Samples)
}

func TestScan_MaxScanBytesTruncates(t *testing.T) {
	data := append([]byte("aaaa"), []byte("bbbbbbbbbb")...)
	s := Scan(data, Config{MinLength: 4, MaxSamples: 10, MaxScanBytes: 4})
	require.NotEmpty(t, s.Samples)
	for _, sample := range s.Samples {
		assert.NotContains(t, sample.Text, "b")
	}
}
