package pe

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

const (
	richSignature = 0x68636952 // "Rich"
	dansSignature = 0x536e6144 // "DanS"
)

// RichHeaderEntry is one compiler/linker tool-usage record.
type RichHeaderEntry struct {
	ProductID uint16
	BuildID   uint16
	UseCount  uint32
	ToolName  string // "" if unrecognized
}

// RichHeader is the recovered, decoded Rich Header: the undocumented
// linker metadata block Microsoft's toolchain writes between the DOS
// stub and the NT header.
type RichHeader struct {
	Offset           uint32
	Size             uint32
	XORKey           uint32
	Entries          []RichHeaderEntry
	ChecksumVerified bool // always false: full verification needs the
	// original un-relocated DOS header bytes, which this parser does
	// not reconstruct; reported explicitly rather than claimed valid.
	Hash string
}

// ParseRichHeader scans the region between the DOS stub and the PE
// signature for "Rich", then walks backward XORing with the recovered
// key until "DanS" confirms the start. Returns nil (not an error) when
// no Rich Header is present, which is common for non-MSVC toolchains.
func (f *File) ParseRichHeader() (*RichHeader, error) {
	searchEnd := int64(f.ELfanew)
	if searchEnd > 0x400 {
		searchEnd = 0x400
	}
	if searchEnd <= 0x40 {
		return nil, nil
	}
	buf, err := f.r.ReadAt(0, int(searchEnd))
	if err != nil || len(buf) < 0x48 {
		return nil, nil
	}
	le := binary.LittleEndian

	richPos := -1
	for i := 0x40; i+4 <= len(buf); i++ {
		if le.Uint32(buf[i:i+4]) == richSignature {
			richPos = i
			break
		}
	}
	if richPos < 0 || richPos+8 > len(buf) {
		return nil, nil
	}
	xorKey := le.Uint32(buf[richPos+4 : richPos+8])

	dansPos := -1
	for pos := richPos - 4; pos >= 0x40; pos -= 4 {
		if pos+4 > len(buf) {
			continue
		}
		if le.Uint32(buf[pos:pos+4])^xorKey == dansSignature {
			dansPos = pos
			break
		}
	}
	if dansPos < 0 {
		return nil, nil
	}

	var entries []RichHeaderEntry
	pos := dansPos + 16 // skip DanS + 3 null padding DWORDs
	for pos+8 <= richPos {
		entryDword := le.Uint32(buf[pos:pos+4]) ^ xorKey
		countDword := le.Uint32(buf[pos+4:pos+8]) ^ xorKey

		productID := uint16(entryDword >> 16)
		buildID := uint16(entryDword & 0xFFFF)
		pos += 8

		if productID == 0 && buildID == 0 {
			continue
		}
		entries = append(entries, RichHeaderEntry{
			ProductID: productID,
			BuildID:   buildID,
			UseCount:  countDword,
			ToolName:  richToolName(productID),
		})
	}

	rh := &RichHeader{
		Offset:           uint32(dansPos),
		Size:             uint32(richPos-dansPos) + 8,
		XORKey:           xorKey,
		Entries:          entries,
		ChecksumVerified: false,
		Hash:             richHash(entries, xorKey),
	}
	return rh, nil
}

// richHash derives a stable attribution hash over the XOR key and the
// ordered entry list, for clustering binaries built by the same
// toolchain fingerprint.
func richHash(entries []RichHeaderEntry, xorKey uint32) string {
	h := sha256.New()
	var keyBuf [4]byte
	binary.LittleEndian.PutUint32(keyBuf[:], xorKey)
	h.Write(keyBuf[:])
	for _, e := range entries {
		var b [8]byte
		binary.LittleEndian.PutUint16(b[0:2], e.ProductID)
		binary.LittleEndian.PutUint16(b[2:4], e.BuildID)
		binary.LittleEndian.PutUint32(b[4:8], e.UseCount)
		h.Write(b[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// richProductNames maps a subset of well-known Rich Header product IDs
// to their Visual Studio toolchain component names.
var richProductNames = map[uint16]string{
	0x01: "Import", 0x02: "Linker", 0x03: "Cvtres",
	0x0a: "Pogo_PGO", 0x0b: "Masm613", 0x18: "VisualBasic60",
	0x5d: "Utc13_Basic", 0x5e: "Utc13_C", 0x5f: "Utc13_CPP",
	0x83: "Utc1400_C", 0x84: "Utc1400_CPP",
	0x8d: "Utc1500_C", 0x8e: "Utc1500_CPP",
	0x91: "Linker900",
	0x97: "Utc1600_C", 0x98: "Utc1600_CPP",
	0xa1: "Utc1700_C", 0xa2: "Utc1700_CPP",
	0xab: "Utc1800_C", 0xac: "Utc1800_CPP",
	0xb5: "Utc1900_C", 0xb6: "Utc1900_CPP",
	0xc9: "Utc1920_C", 0xca: "Utc1920_CPP",
}

func richToolName(productID uint16) string {
	return richProductNames[productID]
}
