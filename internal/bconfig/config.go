// Package bconfig is the single composite configuration that drives the
// triage pipeline (spec §6): I/O caps, entropy thresholds and weights,
// string/heuristic tuning, scoring weights, and packer-scan limits.
// Every field has a documented default; omission from a KDL override
// file is legal and falls back to it.
package bconfig

// IO caps the bounded reader and the sniffer/entropy sampling windows.
type IO struct {
	MaxFileSize     int64
	MaxReadBytes    int64
	MaxSniffSize    int64
	MaxHeaderSize   int64
	MaxEntropySize  int64
	SniffBufferSize int64
}

// EntropyThresholds are the classification boundaries of §4.4.
type EntropyThresholds struct {
	Text       float64
	Code       float64
	Compressed float64
	Encrypted  float64
	CliffDelta float64
	LowHeader  float64
	HighBody   float64
}

// EntropyWeights score the anomalies §4.4/§4.3 feed into the fuse stage.
type EntropyWeights struct {
	HeaderBodyMismatch float64
	CliffDetected      float64
	HighEntropy        float64
	EncryptedRandom    float64
}

// Entropy configures the sliding-window engine (§4.4).
type Entropy struct {
	WindowSize int
	StepSize   int
	MaxWindows int
	HeaderSize int
	Thresholds EntropyThresholds
	Weights    EntropyWeights
}

// Heuristics tunes string extraction and endianness inference.
type Heuristics struct {
	MinStringLength      int
	StringSampleLimit    int
	StringSampleMaxLen   int
	EndiannessThreshold  float64
	EndiannessWeight     float64
}

// Scoring configures the fuse stage of the triage pipeline (§4.3 step 6).
type Scoring struct {
	InferWeight                float64
	MimeWeight                 float64
	OtherWeight                float64
	ParserSuccessConfidence    float64
	FormatConsistencyPenalty   float64
	ArchConsistencyPenalty     float64
}

// Packers configures the signature scanner (§4.3 step 4, §L6).
type Packers struct {
	ScanLimit            int64
	UPXDetectionWeight   float64
	UPXVersionWeight     float64
	PackerSignalWeight   float64
}

// Headers configures format-validator confidence contributions.
type Headers struct {
	BaseConfidence            float64
	DetailedConfidence        float64
	PythonBytecodeConfidence  float64
}

// Config is the full composite configuration.
type Config struct {
	IO         IO
	Entropy    Entropy
	Heuristics Heuristics
	Scoring    Scoring
	Packers    Packers
	Headers    Headers
}

// Default returns the documented defaults (spec §6).
func Default() Config {
	return Config{
		IO: IO{
			MaxFileSize:     512 * 1024 * 1024,
			MaxReadBytes:    256 * 1024 * 1024,
			MaxSniffSize:    4096,
			MaxHeaderSize:   4096,
			MaxEntropySize:  64 * 1024 * 1024,
			SniffBufferSize: 512,
		},
		Entropy: Entropy{
			WindowSize: 4096,
			StepSize:   1024,
			MaxWindows: 256,
			HeaderSize: 1024,
			Thresholds: EntropyThresholds{
				Text:       3.0,
				Code:       5.0,
				Compressed: 7.0,
				Encrypted:  7.8,
				CliffDelta: 1.0,
				LowHeader:  4.0,
				HighBody:   7.0,
			},
			Weights: EntropyWeights{
				HeaderBodyMismatch: 0.2,
				CliffDetected:      0.15,
				HighEntropy:        0.1,
				EncryptedRandom:    0.25,
			},
		},
		Heuristics: Heuristics{
			MinStringLength:     4,
			StringSampleLimit:   2000,
			StringSampleMaxLen:  256,
			EndiannessThreshold: 0.6,
			EndiannessWeight:    0.1,
		},
		Scoring: Scoring{
			InferWeight:              0.2,
			MimeWeight:               0.5,
			OtherWeight:              0.1,
			ParserSuccessConfidence:  0.6,
			FormatConsistencyPenalty: 0.3,
			ArchConsistencyPenalty:   0.2,
		},
		Packers: Packers{
			ScanLimit:          512 * 1024,
			UPXDetectionWeight: 0.7,
			UPXVersionWeight:   0.9,
			PackerSignalWeight: 0.3,
		},
		Headers: Headers{
			BaseConfidence:           0.5,
			DetailedConfidence:       0.8,
			PythonBytecodeConfidence: 0.6,
		},
	}
}
