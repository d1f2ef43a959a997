package artifact

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"strings"
	"time"
)

// DefaultSchemaVersion is the schema version new Artifacts and
// TriageArtifacts are stamped with.
const DefaultSchemaVersion = "1.0.0"

// Artifact is the generic, typed result envelope every analysis tool or
// pass in the pipeline produces: a stable ID, provenance (which tool,
// when, from which inputs), a schema version, and a JSON data payload
// (spec §3's "Artifact (generic envelope)"). Artifacts are immutable
// after construction; equality ignores CreatedAt.
type Artifact struct {
	ID            string                     `json:"id"`
	Tool          Tool                       `json:"tool"`
	CreatedAt     time.Time                  `json:"created_at"`
	InputRefs     []string                   `json:"input_refs,omitempty"`
	SchemaVersion string                     `json:"schema_version"`
	DataType      string                     `json:"data_type"`
	Data          json.RawMessage            `json:"data"`
	Meta          map[string]json.RawMessage `json:"meta,omitempty"`
}

// New constructs an Artifact, defaulting SchemaVersion to
// DefaultSchemaVersion when empty and validating the result.
func New(id string, tool Tool, dataType string, data json.RawMessage, inputRefs []string, schemaVersion string, meta map[string]json.RawMessage) (*Artifact, error) {
	if schemaVersion == "" {
		schemaVersion = DefaultSchemaVersion
	}
	a := &Artifact{
		ID:            id,
		Tool:          tool,
		CreatedAt:     time.Now().UTC(),
		InputRefs:     inputRefs,
		SchemaVersion: schemaVersion,
		DataType:      dataType,
		Data:          data,
		Meta:          meta,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks the required fields of the envelope: non-empty ID,
// schema version, data type, well-formed tool metadata, and no blank
// input references.
func (a *Artifact) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return &ValidationError{Field: "id", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(a.SchemaVersion) == "" {
		return &ValidationError{Field: "schema_version", Reason: "cannot be empty"}
	}
	if strings.TrimSpace(a.DataType) == "" {
		return &ValidationError{Field: "data_type", Reason: "cannot be empty"}
	}
	if err := a.Tool.Validate(); err != nil {
		return err
	}
	for _, ref := range a.InputRefs {
		if strings.TrimSpace(ref) == "" {
			return &ValidationError{Field: "input_refs", Reason: "entry cannot be empty"}
		}
	}
	return nil
}

// Equal compares two Artifacts ignoring CreatedAt, per spec.
func (a *Artifact) Equal(other *Artifact) bool {
	if a == nil || other == nil {
		return a == other
	}
	if a.ID != other.ID || !a.Tool.equal(other.Tool) || a.SchemaVersion != other.SchemaVersion ||
		a.DataType != other.DataType || len(a.InputRefs) != len(other.InputRefs) {
		return false
	}
	for i := range a.InputRefs {
		if a.InputRefs[i] != other.InputRefs[i] {
			return false
		}
	}
	if len(a.Meta) != len(other.Meta) {
		return false
	}
	for k, v := range a.Meta {
		if ov, ok := other.Meta[k]; !ok || !bytes.Equal(v, ov) {
			return false
		}
	}
	return bytes.Equal(a.Data, other.Data)
}

// AddInputRef appends an input artifact reference.
func (a *Artifact) AddInputRef(ref string) {
	a.InputRefs = append(a.InputRefs, ref)
}

// RemoveInputRef removes the first occurrence of ref, reporting whether
// it was present.
func (a *Artifact) RemoveInputRef(ref string) bool {
	for i, r := range a.InputRefs {
		if r == ref {
			a.InputRefs = append(a.InputRefs[:i], a.InputRefs[i+1:]...)
			return true
		}
	}
	return false
}

// InputRefCount returns the number of input references.
func (a *Artifact) InputRefCount() int { return len(a.InputRefs) }

// HasInputRefs reports whether the artifact has any input references.
func (a *Artifact) HasInputRefs() bool { return len(a.InputRefs) > 0 }

// ToJSON serializes the artifact to its canonical JSON representation.
func (a *Artifact) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// FromJSON deserializes an Artifact from JSON, enforcing the
// schema-version major-compatibility gate (spec §6: "producers MUST
// refuse to deserialize a document whose major schema version they do
// not recognize").
func FromJSON(data []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if err := CheckSchemaVersion(a.SchemaVersion); err != nil {
		return nil, err
	}
	return &a, nil
}

// ToBinary serializes the artifact with encoding/gob: a 1:1,
// field-for-field binary encoding of the same envelope JSON describes
// (spec §6 — "the binary-serialization format ... is a 1:1 encoding of
// the JSON document with the same field names; no distinct wire schema
// exists").
func (a *Artifact) ToBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(a); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromBinary deserializes an Artifact from its gob encoding, enforcing
// the same schema-version gate as FromJSON.
func FromBinary(data []byte) (*Artifact, error) {
	var a Artifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, err
	}
	if err := CheckSchemaVersion(a.SchemaVersion); err != nil {
		return nil, err
	}
	return &a, nil
}
