package entropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShannonBounds(t *testing.T) {
	constant := make([]byte, 256)
	for i := range constant {
		constant[i] = 0x41
	}
	assert.Equal(t, 0.0, Shannon(constant))

	uniform := make([]byte, 256*4)
	for i := range uniform {
		uniform[i] = byte(i % 256)
	}
	assert.InDelta(t, 8.0, Shannon(uniform), 1e-9)
}

func TestShannonEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Shannon(nil))
}

func TestSlideMatchesRescan(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte((i * 37) % 256)
	}
	windowSize, step := 256, 64

	h := NewHistogram(data[:windowSize])
	for pos := 0; pos+windowSize+step <= len(data); pos += step {
		h.Slide(data[pos:pos+step], data[pos+windowSize:pos+windowSize+step])
		want := Shannon(data[pos+step : pos+step+windowSize])
		assert.InDelta(t, want, h.Entropy(), 1e-9)
	}
}

func TestAnalyzeWindowsFirstWindowAgreement(t *testing.T) {
	data := make([]byte, 2048)
	for i := range data {
		data[i] = byte(i)
	}
	cfg := WindowConfig{WindowSize: 256, StepSize: 256, MaxWindows: 100}
	analysis := AnalyzeWindows(data, cfg)
	require.NotEmpty(t, analysis.Entropies)
	assert.InDelta(t, Shannon(data[:256]), analysis.Entropies[0], 1e-9)
}

func TestAnalyzeWindowsCliff(t *testing.T) {
	low := make([]byte, 8192)
	for i := range low {
		low[i] = 'A'
	}
	high := make([]byte, 8192)
	for i := range high {
		high[i] = byte((i*97 + 13) % 256)
	}
	data := append(low, high...)

	cfg := WindowConfig{WindowSize: 1024, StepSize: 1024, MaxWindows: 256}
	analysis := AnalyzeWindows(data, cfg)
	cliffs := analysis.DetectCliffs(1.0)
	assert.NotEmpty(t, cliffs)
}

func TestAnalyzeWindowsMaxWindowsLimit(t *testing.T) {
	data := make([]byte, 10000)
	cfg := WindowConfig{WindowSize: 100, StepSize: 10, MaxWindows: 5}
	analysis := AnalyzeWindows(data, cfg)
	assert.Len(t, analysis.Entropies, 5)
}

func TestClassify(t *testing.T) {
	th := DefaultThresholds()
	assert.Equal(t, ClassText, Classify(1.0, th))
	assert.Equal(t, ClassCode, Classify(4.0, th))
	assert.Equal(t, ClassCompressed, Classify(6.0, th))
	assert.Equal(t, ClassAmbiguous, Classify(7.5, th))
	assert.Equal(t, ClassEncrypted, Classify(7.9, th))
}

func TestDetectAnomaliesHeaderBodyMismatch(t *testing.T) {
	header := make([]byte, 1024)
	body := make([]byte, 8192)
	for i := range body {
		body[i] = byte((i*211 + 7) % 256)
	}
	data := append(header, body...)

	cfg := DefaultAnomalyConfig()
	windows := AnalyzeWindows(data, WindowConfig{WindowSize: 1024, StepSize: 1024, MaxWindows: 256})
	anomalies := DetectAnomalies(data, windows, cfg)

	found := false
	for _, a := range anomalies {
		if a.Kind == "header_body_mismatch" {
			found = true
		}
	}
	assert.True(t, found, "expected a header/body mismatch anomaly")
}
