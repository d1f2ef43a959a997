package elf

import "github.com/standardbeagle/bintriage/internal/format/common"

// SecurityFeatures reports the hardening mitigations derivable from
// static structure alone (spec §4.2.2): NX from PT_GNU_STACK lacking
// PF_X, RELRO from PT_GNU_RELRO plus DT_BIND_NOW/DF_BIND_NOW, PIE from
// e_type == ET_DYN, and canary/FORTIFY/CFI/sanitizer presence from
// their well-known symbol names.
type SecurityFeatures struct {
	NX            bool
	RELRO         RelroLevel
	PIE           bool
	StackCanary   bool
	Fortify       bool
	CFI           bool
	Sanitizer     string // "asan", "ubsan", "msan", "tsan", or "" if none detected
}

// RelroLevel is the strength of relocation read-only hardening.
type RelroLevel string

const (
	RelroNone    RelroLevel = "none"
	RelroPartial RelroLevel = "partial"
	RelroFull    RelroLevel = "full"
)

var sanitizerSymbolPrefixes = []struct {
	prefix string
	name   string
}{
	{"__asan_", "asan"},
	{"__ubsan_", "ubsan"},
	{"__msan_", "msan"},
	{"__tsan_", "tsan"},
}

// DeriveSecurityFeatures computes the mitigation summary from a parsed
// header, segment table, dynamic section, and symbol list. dyn may be
// nil for statically linked binaries with no PT_DYNAMIC segment.
func (f *File) DeriveSecurityFeatures(segs *SegmentTable, dyn *Dynamic, symbols []common.Symbol) SecurityFeatures {
	sf := SecurityFeatures{PIE: f.IsPIE(), RELRO: RelroNone}

	hasGNURelro := false
	for _, s := range segs.All {
		if s.Type == PT_GNU_STACK && s.Flags&PF_X == 0 {
			sf.NX = true
		}
		if s.Type == PT_GNU_RELRO {
			hasGNURelro = true
		}
	}

	if hasGNURelro {
		sf.RELRO = RelroPartial
		if dyn != nil && dyn.BindNow {
			sf.RELRO = RelroFull
		}
	}

	for _, sym := range symbols {
		switch sym.Name {
		case "__stack_chk_fail", "__stack_chk_guard":
			sf.StackCanary = true
		case "__cfi_check", "__cfi_slowpath":
			sf.CFI = true
		}
		if len(sym.Name) > 11 && sym.Name[:11] == "__fortify__" {
			sf.Fortify = true
		}
		for _, p := range sanitizerSymbolPrefixes {
			if len(sym.Name) > len(p.prefix) && sym.Name[:len(p.prefix)] == p.prefix {
				sf.Sanitizer = p.name
			}
		}
		if hasFortifySuffix(sym.Name) {
			sf.Fortify = true
		}
	}

	return sf
}

// hasFortifySuffix reports whether name looks like a FORTIFY_SOURCE
// checked variant, e.g. "__printf_chk", "__memcpy_chk".
func hasFortifySuffix(name string) bool {
	const suffix = "_chk"
	if len(name) <= len(suffix) {
		return false
	}
	return name[len(name)-len(suffix):] == suffix && name[:2] == "__"
}
