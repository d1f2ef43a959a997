// Package strscan implements the bounded ASCII and UTF-16LE/BE string
// scanners that feed a triage StringsSummary (spec §3, §4.3 stage 3's
// sibling: the strings pass runs alongside entropy, over the same
// bounded prefix).
package strscan

import (
	"sort"
	"unicode/utf16"
)

// Encoding names which scanner produced a String.
type Encoding string

const (
	EncodingASCII    Encoding = "ascii"
	EncodingUTF16LE  Encoding = "utf16le"
	EncodingUTF16BE  Encoding = "utf16be"
)

// String is one extracted run with its encoding and starting offset.
type String struct {
	Text     string
	Encoding Encoding
	Offset   int
}

// Config tunes scan bounds; mirrors bconfig.Heuristics' relevant fields
// so callers can pass that struct's values directly.
type Config struct {
	MinLength    int
	MaxSamples   int
	MaxScanBytes int // 0 means no extra cap beyond len(data)
}

// Summary is the aggregate a scan produces: total counts per encoding
// plus a bounded sample list, deterministic in offset order.
type Summary struct {
	ASCIICount   int
	UTF16LECount int
	UTF16BECount int
	Samples      []String
}

// Scan runs the ASCII and UTF-16 scanners over data (truncated to
// cfg.MaxScanBytes if set) and returns their combined summary. Samples
// from all three scanners are merged and sorted by offset so the result
// is a pure function of input, independent of scan order.
func Scan(data []byte, cfg Config) Summary {
	if cfg.MaxScanBytes > 0 && len(data) > cfg.MaxScanBytes {
		data = data[:cfg.MaxScanBytes]
	}

	asciiCount, asciiSamples := scanASCII(data, cfg)
	le, leSamples := scanUTF16(data, cfg, true)
	be, beSamples := scanUTF16(data, cfg, false)

	all := make([]String, 0, len(asciiSamples)+len(leSamples)+len(beSamples))
	all = append(all, asciiSamples...)
	all = append(all, leSamples...)
	all = append(all, beSamples...)
	sortByOffset(all)
	if cfg.MaxSamples > 0 && len(all) > cfg.MaxSamples {
		all = all[:cfg.MaxSamples]
	}

	return Summary{
		ASCIICount:   asciiCount,
		UTF16LECount: le,
		UTF16BECount: be,
		Samples:      all,
	}
}

func isASCIIPrintable(b byte) bool {
	return (b >= 0x20 && b < 0x7f) || b == '\t'
}

func scanASCII(data []byte, cfg Config) (int, []String) {
	count := 0
	var samples []String
	var cur []byte
	start := 0
	flush := func(end int) {
		if len(cur) >= cfg.MinLength {
			count++
			if cfg.MaxSamples == 0 || len(samples) < cfg.MaxSamples {
				samples = append(samples, String{Text: string(cur), Encoding: EncodingASCII, Offset: start})
			}
		}
		cur = cur[:0]
	}
	for i, b := range data {
		if isASCIIPrintable(b) {
			if len(cur) == 0 {
				start = i
			}
			cur = append(cur, b)
		} else if len(cur) > 0 {
			flush(i)
		}
	}
	if len(cur) > 0 {
		flush(len(data))
	}
	return count, samples
}

// scanUTF16 finds runs of two-byte code units that decode to printable
// ASCII-range characters interleaved with zero bytes -- the common shape
// of UTF-16 string literals embedded in a binary produced from a
// narrower character set. little selects UTF-16LE vs UTF-16BE byte order.
func scanUTF16(data []byte, cfg Config, little bool) (int, []String) {
	count := 0
	var samples []String
	var units []uint16
	start := 0

	flush := func() {
		if len(units) >= cfg.MinLength {
			count++
			if cfg.MaxSamples == 0 || len(samples) < cfg.MaxSamples {
				enc := EncodingUTF16LE
				if !little {
					enc = EncodingUTF16BE
				}
				text := string(utf16.Decode(units))
				samples = append(samples, String{Text: text, Encoding: enc, Offset: start})
			}
		}
		units = units[:0]
	}

	i := 0
	for i+1 < len(data) {
		var lo, hi byte
		if little {
			lo, hi = data[i], data[i+1]
		} else {
			hi, lo = data[i], data[i+1]
		}
		if hi == 0 && isASCIIPrintable(lo) {
			if len(units) == 0 {
				start = i
			}
			units = append(units, uint16(lo))
			i += 2
			continue
		}
		if len(units) > 0 {
			flush()
		}
		i++
	}
	if len(units) > 0 {
		flush()
	}
	return count, samples
}

func sortByOffset(s []String) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Offset < s[j].Offset })
}
