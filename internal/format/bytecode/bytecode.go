// Package bytecode recognizes the managed-runtime and archive container
// formats the triage pipeline identifies at sniff depth only (spec §6):
// Java .class files, Python .pyc bytecode, and ZIP/JAR archives. None of
// these get a structural parser; a magic (and for .pyc, an extension)
// match is the full extent of the recognition.
package bytecode

import "encoding/binary"

// Kind names which sniff-depth format matched.
type Kind string

const (
	KindJavaClass Kind = "java_class"
	KindPythonPyc Kind = "python_pyc"
	KindZIP       Kind = "zip"
)

var javaClassMagic = []byte{0xCA, 0xFE, 0xBA, 0xBE}

// zipLocalFileMagic is "PK\x03\x04"; zipEmptyMagic and zipSpannedMagic
// cover the empty-archive and spanned-archive signature variants.
var (
	zipLocalFileMagic = []byte{'P', 'K', 0x03, 0x04}
	zipEmptyMagic     = []byte{'P', 'K', 0x05, 0x06}
	zipSpannedMagic   = []byte{'P', 'K', 0x07, 0x08}
)

// SniffJavaClass reports whether data begins with the Java class-file
// magic CA FE BA BE, and if so, the major/minor version fields that
// immediately follow it.
func SniffJavaClass(data []byte) (major, minor uint16, ok bool) {
	if len(data) < 8 || !hasPrefix(data, javaClassMagic) {
		return 0, 0, false
	}
	minor = binary.BigEndian.Uint16(data[4:6])
	major = binary.BigEndian.Uint16(data[6:8])
	return major, minor, true
}

// pycMagicTable maps a subset of well-known CPython magic numbers
// (the little-endian uint32 at the start of a .pyc file, magic bytes
// followed by \r\n) to the interpreter version they identify. This is
// not exhaustive; every CPython release mints a new magic number, and
// the pipeline only needs "some modern CPython produced this."
var pycMagicTable = map[uint32]string{
	0x0a0d0d42: "3.7",
	0x0a0d0d55: "3.8",
	0x0a0d0d61: "3.9",
	0x0a0d0d6f: "3.10",
	0x0a0d0da7: "3.11",
	0x0a0d0dcb: "3.12",
}

// SniffPythonPyc reports whether data's first four bytes are a known
// CPython bytecode-cache magic number, returning the version string
// when recognized. The caller is expected to also weigh the ".pyc"
// extension hint (spec §4.3 stage 1: header beats extension); for a
// .pyc whose magic is not in the table, sniff still emits an
// extension-source hint.
func SniffPythonPyc(data []byte) (version string, ok bool) {
	if len(data) < 4 {
		return "", false
	}
	magic := binary.LittleEndian.Uint32(data[0:4])
	v, known := pycMagicTable[magic]
	return v, known
}

// SniffZIP reports whether data begins with one of the three PK
// signature variants a ZIP/JAR archive may open with.
func SniffZIP(data []byte) bool {
	return hasPrefix(data, zipLocalFileMagic) || hasPrefix(data, zipEmptyMagic) || hasPrefix(data, zipSpannedMagic)
}

// IsJAR reports a ZIP archive whose first local file entry's name is
// exactly "META-INF/MANIFEST.MF" at its conventional local-header
// offset -- a quick heuristic, not an authoritative manifest parse; a
// JAR without a leading manifest entry is still a JAR but won't match.
func IsJAR(data []byte) bool {
	if !SniffZIP(data) || len(data) < 30 {
		return false
	}
	nameLen := int(binary.LittleEndian.Uint16(data[26:28]))
	if 30+nameLen > len(data) {
		return false
	}
	return string(data[30:30+nameLen]) == "META-INF/MANIFEST.MF"
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
