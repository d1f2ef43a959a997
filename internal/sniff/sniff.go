// Package sniff implements the three independent format sniffers that
// open stage 1 of the triage pipeline (spec §4.3): extension, content
// (magic-number), and header (deeper structural peek). Each emits
// weighted Hints; a combined call unions all three sniffers' output.
package sniff

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/bintriage/internal/format/bytecode"
)

// Source classifies which sniffer produced a Hint; its weight class
// reflects the reliability of that class of evidence, not any
// file-specific confidence (spec §3: "Weight reflects class
// reliability, not file-specific confidence").
type Source string

const (
	SourceExtension Source = "extension"
	SourceContent   Source = "content"
	SourceHeuristic Source = "heuristic"
	SourceHeader    Source = "header"
)

// Hint is one sniffer's vote for a format/mime label.
type Hint struct {
	Source    Source
	Label     string
	MIME      string
	Extension string
	Weight    float64
}

// Weights assigns the reliability class each Source carries when no
// override is configured; extension is the least reliable signal,
// header the most.
type Weights struct {
	Extension float64
	Content   float64
	Heuristic float64
	Header    float64
}

// DefaultWeights mirrors spec §4.3 stage 1: "extension low, content
// medium, header high".
func DefaultWeights() Weights {
	return Weights{Extension: 0.2, Content: 0.5, Heuristic: 0.3, Header: 0.8}
}

var magicTable = []struct {
	magic []byte
	label string
	mime  string
}{
	{[]byte{0x7f, 'E', 'L', 'F'}, "ELF", "application/x-elf"},
	{[]byte{'M', 'Z'}, "PE", "application/x-dosexec"},
	{[]byte{0xfe, 0xed, 0xfa, 0xce}, "Mach-O", "application/x-mach-binary"},
	{[]byte{0xfe, 0xed, 0xfa, 0xcf}, "Mach-O", "application/x-mach-binary"},
	{[]byte{0xce, 0xfa, 0xed, 0xfe}, "Mach-O", "application/x-mach-binary"},
	{[]byte{0xcf, 0xfa, 0xed, 0xfe}, "Mach-O", "application/x-mach-binary"},
	{[]byte{0xca, 0xfe, 0xba, 0xbe}, "Java-class", "application/x-java-class"},
	{[]byte{'P', 'K', 0x03, 0x04}, "ZIP", "application/zip"},
}

var extensionTable = map[string]string{
	".exe": "PE",
	".dll": "PE",
	".sys": "PE",
	".so":  "ELF",
	".o":   "ELF",
	".dylib": "Mach-O",
	".class": "Java-class",
	".pyc":   "Python-pyc",
	".jar":   "ZIP",
	".zip":   "ZIP",
}

// SniffExtension emits a low-weight Hint from a file extension alone.
func SniffExtension(path string, w Weights) []Hint {
	ext := strings.ToLower(filepath.Ext(path))
	label, ok := extensionTable[ext]
	if !ok {
		return nil
	}
	return []Hint{{Source: SourceExtension, Label: label, Extension: ext, Weight: w.Extension}}
}

// SniffContent emits a medium-weight Hint per matched magic number at
// the start of data. Multiple matches are possible only in theory (the
// table's magics are mutually exclusive prefixes); all matches are
// returned so the fuse stage can weigh ambiguity.
func SniffContent(data []byte, w Weights) []Hint {
	var hints []Hint
	for _, m := range magicTable {
		if hasPrefix(data, m.magic) {
			hints = append(hints, Hint{Source: SourceContent, Label: m.label, MIME: m.mime, Weight: w.Content})
		}
	}
	if version, ok := bytecode.SniffPythonPyc(data); ok {
		hints = append(hints, Hint{Source: SourceContent, Label: "Python-pyc:" + version, Weight: w.Content})
	}
	return hints
}

// SniffHeader emits a high-weight Hint after a deeper structural peek
// than a bare magic match: e.g. distinguishing a JAR (ZIP containing a
// manifest entry) from a plain ZIP, which SniffContent cannot do from
// the magic alone.
func SniffHeader(data []byte, w Weights) []Hint {
	var hints []Hint
	if bytecode.IsJAR(data) {
		hints = append(hints, Hint{Source: SourceHeader, Label: "JAR", MIME: "application/java-archive", Weight: w.Header})
	}
	return hints
}

// Combined runs all three sniffers and returns the union of their
// Hints. path may be empty when only in-memory bytes are available (no
// extension evidence is then produced).
func Combined(path string, data []byte, w Weights) []Hint {
	var hints []Hint
	if path != "" {
		hints = append(hints, SniffExtension(path, w)...)
	}
	hints = append(hints, SniffContent(data, w)...)
	hints = append(hints, SniffHeader(data, w)...)
	return hints
}

func hasPrefix(data, magic []byte) bool {
	if len(data) < len(magic) {
		return false
	}
	for i, b := range magic {
		if data[i] != b {
			return false
		}
	}
	return true
}
