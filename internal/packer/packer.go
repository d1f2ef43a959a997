// Package packer implements the signature scanner and overlay isolation
// of triage pipeline stages 4-5 (spec §4.3): a bounded byte-signature
// scan for known packers, plus format-specific overlay extraction
// (bytes beyond the last section/segment) with entropy, SHA-256, and a
// bounded header sample of the isolated region.
package packer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/standardbeagle/bintriage/internal/entropy"
)

// Signature is a single known-packer byte pattern and the family it
// identifies.
type Signature struct {
	Family  string
	Pattern []byte
}

// Signatures are well-known public packer/installer byte markers, not
// sourced from any one file -- the same constants every public packer
// detector (PEiD, Detect It Easy, binwalk) carries.
var Signatures = []Signature{
	{"UPX", []byte("UPX!")},
	{"UPX", []byte("UPX0")},
	{"UPX", []byte("UPX1")},
	{"NSIS", []byte("NullsoftInst")},
	{"InnoSetup", []byte("Inno Setup")},
	{"ASPack", []byte(".aspack")},
	{"ASPack", []byte("ASPack")},
	{"NsPack", []byte("nsp1")},
	{"NsPack", []byte("NsPack")},
}

// upxVersionMarker is the "$Id: UPX ..." version string UPX embeds
// alongside its magic.
var upxVersionMarker = []byte("$Id: UPX")

// Hit is one matched signature with its confidence contribution.
type Hit struct {
	Family     string
	Confidence float64
	Version    string
}

// Config tunes the scan window and confidence weights; mirrors
// bconfig.Packers so callers pass that struct's values directly.
type Config struct {
	ScanLimit          int64
	UPXDetectionWeight float64
	UPXVersionWeight   float64
	PackerSignalWeight float64
}

// Scan searches the first cfg.ScanLimit bytes of data for known packer
// signatures, returning one Hit per distinct family matched (multiple
// signatures for the same family collapse to its highest confidence).
func Scan(data []byte, cfg Config) []Hit {
	window := data
	if cfg.ScanLimit > 0 && int64(len(window)) > cfg.ScanLimit {
		window = window[:cfg.ScanLimit]
	}

	byFamily := map[string]float64{}
	for _, sig := range Signatures {
		if bytes.Contains(window, sig.Pattern) {
			conf := cfg.PackerSignalWeight
			if sig.Family == "UPX" {
				conf = cfg.UPXDetectionWeight
			}
			if conf > byFamily[sig.Family] {
				byFamily[sig.Family] = conf
			}
		}
	}

	var hits []Hit
	for family, conf := range byFamily {
		h := Hit{Family: family, Confidence: conf}
		if family == "UPX" {
			if idx := bytes.Index(window, upxVersionMarker); idx >= 0 {
				h.Version = extractUPXVersion(window[idx:])
				if h.Version != "" {
					h.Confidence = cfg.UPXVersionWeight
				}
			}
		}
		hits = append(hits, h)
	}
	sortHits(hits)
	return hits
}

// extractUPXVersion reads the free-text version token following the
// "$Id: UPX" marker, e.g. "$Id: UPX 4.2.4 Copyright ..." -> "4.2.4".
func extractUPXVersion(tail []byte) string {
	const prefix = "$Id: UPX "
	if len(tail) <= len(prefix) {
		return ""
	}
	rest := tail[len(prefix):]
	end := bytes.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	if end > 32 {
		end = 32
	}
	return string(rest[:end])
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Family < hits[j].Family })
}

// OverlayFormat names the archive/installer format an overlay's magic
// identifies, or OverlayGeneric when nothing recognized matches.
type OverlayFormat string

const (
	OverlayZIP     OverlayFormat = "ZIP"
	OverlayCAB     OverlayFormat = "CAB"
	Overlay7Z      OverlayFormat = "7z"
	OverlayRAR     OverlayFormat = "RAR"
	OverlayNSIS    OverlayFormat = "NSIS"
	OverlayInno    OverlayFormat = "InnoSetup"
	OverlayGeneric OverlayFormat = "generic"
)

var overlayMagics = []struct {
	format OverlayFormat
	magic  []byte
}{
	{OverlayZIP, []byte{'P', 'K', 0x03, 0x04}},
	{OverlayCAB, []byte("MSCF")},
	{Overlay7Z, []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}},
	{OverlayRAR, []byte{'R', 'a', 'r', '!', 0x1A, 0x07}},
}

// Overlay is the isolated tail of a binary beyond its last section,
// the region spec §4.3 stage 5 calls the overlay.
type Overlay struct {
	Offset        uint64
	Size          uint64
	Format        OverlayFormat
	IsArchive     bool
	HasSignature  bool
	Entropy       float64
	SHA256        string
	HeaderSample  []byte
}

// headerSampleSize bounds how much of the overlay's head is retained
// for inspection; an overlay may itself be many megabytes.
const headerSampleSize = 256

// Isolate builds an Overlay record for the bytes of data starting at
// offset. It returns the zero value (Size == 0) when offset is at or
// past len(data) -- no overlay present.
func Isolate(data []byte, offset uint64) Overlay {
	if offset >= uint64(len(data)) {
		return Overlay{}
	}
	tail := data[offset:]
	sum := sha256.Sum256(tail)

	o := Overlay{
		Offset:  offset,
		Size:    uint64(len(tail)),
		Format:  OverlayGeneric,
		Entropy: entropy.Shannon(tail),
		SHA256:  hex.EncodeToString(sum[:]),
	}
	sampleLen := len(tail)
	if sampleLen > headerSampleSize {
		sampleLen = headerSampleSize
	}
	o.HeaderSample = append([]byte(nil), tail[:sampleLen]...)
	peek := tail[:min(len(tail), 512)]

	for _, m := range overlayMagics {
		if bytes.HasPrefix(tail, m.magic) {
			o.Format = m.format
			o.IsArchive = true
			break
		}
	}
	if bytes.Contains(peek, []byte("NullsoftInst")) {
		o.Format = OverlayNSIS
	}
	if bytes.Contains(peek, []byte("Inno Setup")) {
		o.Format = OverlayInno
	}
	// A PKCS#7 authenticode signature begins with the ASN.1 SEQUENCE tag
	// 0x30 0x82 immediately after the security-directory header in a
	// real PE; at the coarse overlay level we only flag the common
	// raw-DER prefix as a heuristic signal, not a verified signature.
	if len(tail) >= 2 && tail[0] == 0x30 && tail[1] == 0x82 {
		o.HasSignature = true
	}
	return o
}
