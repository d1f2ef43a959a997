package symbols

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/standardbeagle/bintriage/internal/format/pe"
	"github.com/standardbeagle/bintriage/internal/ioref"
)

// Imphash computes the conventional import-hash: an MD5 digest of the
// comma-joined, lowercased "dllname.importname" (or "dllname.ordN" for
// ordinal-only imports) list in table order, matching every public
// imphash implementation (mandiant's original definition, and every
// PE analysis tool that followed it).
func Imphash(modules []pe.ImportModule) string {
	var parts []string
	for _, m := range modules {
		dll := strings.ToLower(strings.TrimSuffix(m.Name, ".dll"))
		for _, e := range m.Entries {
			name := e.Name
			if name == "" && e.HasOrdinal {
				name = "ord" + strconv.Itoa(int(e.Ordinal))
			}
			if name == "" {
				continue
			}
			parts = append(parts, dll+"."+strings.ToLower(name))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	sum := md5.Sum([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// maxTLSCallbacks bounds the callback array walk against a corrupt or
// hostile TLS directory.
const maxTLSCallbacks = 1024

// TLSCallbacks returns the VAs in the TLS directory's AddressOfCallbacks
// array (spec §6's TLS callback enumeration), reading PE32 or PE32+
// layout per f.Opt.Is64. It returns nil when no TLS directory is
// present or the callback array is empty.
func TLSCallbacks(f *pe.File, sections *pe.SectionTable) []uint64 {
	r := f.Reader()
	dd, ok := f.DataDirectory(pe.DirTLS)
	if !ok || dd.RVA == 0 {
		return nil
	}
	tlsOff, ok := sections.RVAToOffset(dd.RVA)
	if !ok {
		return nil
	}

	cbFieldOffset := int64(0x0C)
	step := 4
	if f.Opt.Is64 {
		cbFieldOffset = 0x18
		step = 8
	}

	cbVA, ok := readUintAt(r, int64(tlsOff)+cbFieldOffset, step)
	if !ok || cbVA == 0 {
		return nil
	}
	if cbVA < f.Opt.ImageBase {
		return nil
	}
	cbRVA := uint32(cbVA - f.Opt.ImageBase)
	cbOff, ok := sections.RVAToOffset(cbRVA)
	if !ok {
		return nil
	}

	var out []uint64
	off := int64(cbOff)
	for i := 0; i < maxTLSCallbacks; i++ {
		val, ok := readUintAt(r, off, step)
		if !ok || val == 0 {
			break
		}
		out = append(out, val)
		off += int64(step)
	}
	return out
}

func readUintAt(r *ioref.Reader, offset int64, size int) (uint64, bool) {
	buf, err := r.ReadAt(offset, size)
	if err != nil || len(buf) < size {
		return 0, false
	}
	if size == 8 {
		return binary.LittleEndian.Uint64(buf), true
	}
	return uint64(binary.LittleEndian.Uint32(buf)), true
}

// rsdsMarker is the CodeView PDB70 debug-record signature.
var rsdsMarker = []byte("RSDS")

// PDBPath recovers an embedded PDB path from an RSDS CodeView record:
// "RSDS" (4 bytes) + a 16-byte GUID + a 4-byte age + a NUL-terminated
// UTF-8 path. It searches the debug data directory first, falling back
// to a scan of fullHeaderBytes, whatever buffer the caller passes (a nil
// buffer leaves no fallback).
func PDBPath(f *pe.File, sections *pe.SectionTable, fullHeaderBytes []byte) string {
	r := f.Reader()
	if dd, ok := f.DataDirectory(pe.DirDebug); ok && dd.RVA != 0 {
		if off, ok := sections.RVAToOffset(dd.RVA); ok {
			size := int(dd.Size)
			if size <= 0 || size > 64*1024 {
				size = 64 * 1024
			}
			buf, err := r.ReadAt(int64(off), size)
			if err == nil {
				if p := pdbPathFromBuffer(buf); p != "" {
					return p
				}
			}
		}
	}
	return pdbPathFromBuffer(fullHeaderBytes)
}

func pdbPathFromBuffer(buf []byte) string {
	idx := bytes.Index(buf, rsdsMarker)
	if idx < 0 {
		return ""
	}
	pathOff := idx + 4 + 16 + 4
	if pathOff >= len(buf) {
		return ""
	}
	end := pathOff
	max := pathOff + 512
	if max > len(buf) {
		max = len(buf)
	}
	for end < max && buf[end] != 0 {
		end++
	}
	if end == pathOff {
		return ""
	}
	return string(buf[pathOff:end])
}
