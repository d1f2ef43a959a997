// Package symbols implements the symbol-level enrichment passes that
// run downstream of the PE/ELF parsers: imphash, the suspicious-API
// matcher, TLS callback enumeration, and CodeView/RSDS PDB path
// recovery (spec §6, §5).
package symbols

import (
	"strings"
	"sync"
)

// suspiciousAPIs is the built-in, normalized base-name set. It mirrors
// the well-known Windows/Linux process-injection, anti-debug,
// privilege, and persistence API families every public capa-style
// ruleset flags.
var suspiciousAPIs = map[string]struct{}{
	"createremotethread": {}, "writeprocessmemory": {}, "readprocessmemory": {},
	"openprocess": {}, "ntwritevirtualmemory": {}, "ntreadvirtualmemory": {},
	"virtualallocex": {}, "virtualprotect": {}, "virtualprotectex": {},
	"ntallocatevirtualmemory": {}, "ntmapviewofsection": {},
	"isdebuggerpresent": {}, "checkremotedebuggerpresent": {}, "ntqueryinformationprocess": {},
	"outputdebugstring": {},
	"adjusttokenprivileges": {}, "lookupprivilegevalue": {},
	"winhttpopen": {}, "internetopen": {}, "wsastartup": {}, "connect": {}, "send": {}, "recv": {},
	"setwindowshookex": {}, "regsetvalueex": {}, "createservice": {},
	"ntsetinformationthread": {}, "zwsetinformationthread": {},
	"ptrace": {}, "dlopen": {}, "mprotect": {}, "fork": {}, "execve": {},
	"createremotethreadex": {}, "queueuserapc": {}, "ntqueueapcthread": {},
	"setthreadcontext": {}, "getthreadcontext": {}, "suspendthread": {}, "resumethread": {},
	"openthread": {}, "openprocesstoken": {}, "duplicatetoken": {}, "duplicatetokenex": {},
	"createtoolhelp32snapshot": {}, "process32first": {}, "process32next": {},
	"thread32first": {}, "thread32next": {}, "createremotethread64": {},
	"mapviewoffile": {}, "mapviewoffileex": {}, "createthread": {}, "createprocessinternalw": {},
	"ntsetinformationprocess": {}, "zwsetinformationprocess": {}, "rtladjustprivileges": {},
}

// ExtraAPISet is the process-wide, append-mostly extension set spec §5
// names: a reader-writer lock guarding a set of additional normalized
// API names, observed by readers as either the pre- or post-update
// snapshot, never a torn view.
type ExtraAPISet struct {
	mu   sync.RWMutex
	apis map[string]struct{}
}

// NewExtraAPISet returns an empty extension set.
func NewExtraAPISet() *ExtraAPISet {
	return &ExtraAPISet{apis: make(map[string]struct{})}
}

// Add inserts normalized names into the set.
func (s *ExtraAPISet) Add(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.apis[NormalizeAPIName(n)] = struct{}{}
	}
}

// Contains reports whether a normalized name is in the set.
func (s *ExtraAPISet) Contains(normalized string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.apis[normalized]
	return ok
}

// NormalizeAPIName reduces a Windows/C API name to a canonical base for
// matching: strips a leading underscore, a stdcall "@N" suffix, and an
// ANSI/Wide "A"/"W" suffix, then lowercases.
func NormalizeAPIName(name string) string {
	s := strings.TrimSpace(name)
	s = strings.TrimPrefix(s, "_")
	if at := strings.LastIndexByte(s, '@'); at >= 0 && isAllDigits(s[at+1:]) {
		s = s[:at]
	}
	if n := len(s); n > 1 {
		last := s[n-1]
		if (last == 'A' || last == 'W') && isASCIILetter(s[n-2]) {
			s = s[:n-1]
		}
	}
	return strings.ToLower(s)
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// DetectSuspiciousImports returns the deduplicated, normalized subset
// of names that match the built-in set or extra, bounded to maxOut
// entries and in input order (the order imports were presented, not
// sorted -- callers needing sorted output sort the result themselves).
func DetectSuspiciousImports(names []string, extra *ExtraAPISet, maxOut int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range names {
		base := NormalizeAPIName(n)
		_, builtin := suspiciousAPIs[base]
		hitExtra := extra != nil && extra.Contains(base)
		if !builtin && !hitExtra {
			continue
		}
		if _, dup := seen[base]; dup {
			continue
		}
		seen[base] = struct{}{}
		out = append(out, base)
		if maxOut > 0 && len(out) >= maxOut {
			break
		}
	}
	return out
}
