package artifact

import "strings"

// SourceKind classifies the analysis approach a tool takes.
type SourceKind string

const (
	SourceStatic    SourceKind = "Static"
	SourceDynamic   SourceKind = "Dynamic"
	SourceHeuristic SourceKind = "Heuristic"
	SourceExternal  SourceKind = "External"
)

// Tool describes the tool that produced an Artifact: its name, version,
// the parameters it ran with, and an optional classification of its
// analysis approach (spec §3's "tool{name, version, parameters?,
// source_kind}").
type Tool struct {
	Name       string            `json:"name"`
	Version    string            `json:"version"`
	Parameters map[string]string `json:"parameters,omitempty"`
	SourceKind SourceKind        `json:"source_kind,omitempty"`
}

// Validate reports whether the tool metadata is well-formed: a
// non-empty name and version are required.
func (t Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "tool.name", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(t.Version) == "" {
		return &ValidationError{Field: "tool.version", Reason: "cannot be empty"}
	}
	return nil
}

func (t Tool) equal(other Tool) bool {
	if t.Name != other.Name || t.Version != other.Version || t.SourceKind != other.SourceKind {
		return false
	}
	if len(t.Parameters) != len(other.Parameters) {
		return false
	}
	for k, v := range t.Parameters {
		if ov, ok := other.Parameters[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// ValidationError signals a malformed envelope field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
