package bconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadFile reads an override file (KDL) at path and applies it on top of
// Default(). A missing file is not an error: it yields the defaults
// unmodified.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := applyKDL(&cfg, string(content)); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadProjectOverride looks for "bintriage.kdl" in dir and applies it
// over Default(), mirroring the project-local override convention.
func LoadProjectOverride(dir string) (Config, error) {
	return LoadFile(filepath.Join(dir, "bintriage.kdl"))
}

func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "io":
			applyIO(&cfg.IO, n)
		case "entropy":
			applyEntropy(&cfg.Entropy, n)
		case "heuristics":
			applyHeuristics(&cfg.Heuristics, n)
		case "scoring":
			applyScoring(&cfg.Scoring, n)
		case "packers":
			applyPackers(&cfg.Packers, n)
		case "headers":
			applyHeaders(&cfg.Headers, n)
		}
	}
	return nil
}

func applyIO(io *IO, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_file_size":
			if v, ok := firstIntArg(cn); ok {
				io.MaxFileSize = int64(v)
			}
		case "max_read_bytes":
			if v, ok := firstIntArg(cn); ok {
				io.MaxReadBytes = int64(v)
			}
		case "max_sniff_size":
			if v, ok := firstIntArg(cn); ok {
				io.MaxSniffSize = int64(v)
			}
		case "max_header_size":
			if v, ok := firstIntArg(cn); ok {
				io.MaxHeaderSize = int64(v)
			}
		case "max_entropy_size":
			if v, ok := firstIntArg(cn); ok {
				io.MaxEntropySize = int64(v)
			}
		case "sniff_buffer_size":
			if v, ok := firstIntArg(cn); ok {
				io.SniffBufferSize = int64(v)
			}
		}
	}
}

func applyEntropy(e *Entropy, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "window_size":
			if v, ok := firstIntArg(cn); ok {
				e.WindowSize = v
			}
		case "step_size":
			if v, ok := firstIntArg(cn); ok {
				e.StepSize = v
			}
		case "max_windows":
			if v, ok := firstIntArg(cn); ok {
				e.MaxWindows = v
			}
		case "header_size":
			if v, ok := firstIntArg(cn); ok {
				e.HeaderSize = v
			}
		case "thresholds":
			for _, tn := range cn.Children {
				switch nodeName(tn) {
				case "text":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.Text = v
					}
				case "code":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.Code = v
					}
				case "compressed":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.Compressed = v
					}
				case "encrypted":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.Encrypted = v
					}
				case "cliff_delta":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.CliffDelta = v
					}
				case "low_header":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.LowHeader = v
					}
				case "high_body":
					if v, ok := firstFloatArg(tn); ok {
						e.Thresholds.HighBody = v
					}
				}
			}
		case "weights":
			for _, wn := range cn.Children {
				switch nodeName(wn) {
				case "header_body_mismatch":
					if v, ok := firstFloatArg(wn); ok {
						e.Weights.HeaderBodyMismatch = v
					}
				case "cliff_detected":
					if v, ok := firstFloatArg(wn); ok {
						e.Weights.CliffDetected = v
					}
				case "high_entropy":
					if v, ok := firstFloatArg(wn); ok {
						e.Weights.HighEntropy = v
					}
				case "encrypted_random":
					if v, ok := firstFloatArg(wn); ok {
						e.Weights.EncryptedRandom = v
					}
				}
			}
		}
	}
}

func applyHeuristics(h *Heuristics, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "min_string_length":
			if v, ok := firstIntArg(cn); ok {
				h.MinStringLength = v
			}
		case "string_sample_limit":
			if v, ok := firstIntArg(cn); ok {
				h.StringSampleLimit = v
			}
		case "string_sample_max_len":
			if v, ok := firstIntArg(cn); ok {
				h.StringSampleMaxLen = v
			}
		case "endianness_threshold":
			if v, ok := firstFloatArg(cn); ok {
				h.EndiannessThreshold = v
			}
		case "endianness_weight":
			if v, ok := firstFloatArg(cn); ok {
				h.EndiannessWeight = v
			}
		}
	}
}

func applyScoring(s *Scoring, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "infer_weight":
			if v, ok := firstFloatArg(cn); ok {
				s.InferWeight = v
			}
		case "mime_weight":
			if v, ok := firstFloatArg(cn); ok {
				s.MimeWeight = v
			}
		case "other_weight":
			if v, ok := firstFloatArg(cn); ok {
				s.OtherWeight = v
			}
		case "parser_success_confidence":
			if v, ok := firstFloatArg(cn); ok {
				s.ParserSuccessConfidence = v
			}
		case "format_consistency_penalty":
			if v, ok := firstFloatArg(cn); ok {
				s.FormatConsistencyPenalty = v
			}
		case "arch_consistency_penalty":
			if v, ok := firstFloatArg(cn); ok {
				s.ArchConsistencyPenalty = v
			}
		}
	}
}

func applyPackers(p *Packers, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "scan_limit":
			if v, ok := firstIntArg(cn); ok {
				p.ScanLimit = int64(v)
			}
		case "upx_detection_weight":
			if v, ok := firstFloatArg(cn); ok {
				p.UPXDetectionWeight = v
			}
		case "upx_version_weight":
			if v, ok := firstFloatArg(cn); ok {
				p.UPXVersionWeight = v
			}
		case "packer_signal_weight":
			if v, ok := firstFloatArg(cn); ok {
				p.PackerSignalWeight = v
			}
		}
	}
}

func applyHeaders(h *Headers, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "base_confidence":
			if v, ok := firstFloatArg(cn); ok {
				h.BaseConfidence = v
			}
		case "detailed_confidence":
			if v, ok := firstFloatArg(cn); ok {
				h.DetailedConfidence = v
			}
		case "python_bytecode_confidence":
			if v, ok := firstFloatArg(cn); ok {
				h.PythonBytecodeConfidence = v
			}
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
