package artifact

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// envelopeSchema is the declarative JSON Schema for the generic
// Artifact envelope, in the same struct-literal style the teacher's MCP
// tool schemas use. It backs the opt-in ValidateEnvelopeShape check
// rather than gating decode, which is handled by the cheaper
// major-version check in CheckSchemaVersion.
var envelopeSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"id":             {Type: "string"},
		"created_at":     {Type: "string"},
		"schema_version": {Type: "string"},
		"data_type":      {Type: "string"},
		"data":           {},
		"input_refs":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"tool": {
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":        {Type: "string"},
				"version":     {Type: "string"},
				"source_kind": {Type: "string"},
			},
			Required: []string{"name", "version"},
		},
	},
	Required: []string{"id", "tool", "created_at", "schema_version", "data_type", "data"},
}

// EnvelopeSchema returns the resolved JSON Schema describing the
// generic Artifact envelope's shape.
func EnvelopeSchema() (*jsonschema.Resolved, error) {
	return envelopeSchema.Resolve(nil)
}

// ValidateEnvelopeShape validates an already-decoded Artifact against
// EnvelopeSchema, for callers that want full structural validation
// beyond the version gate (e.g. accepting artifacts from an external
// tool over the wire).
func ValidateEnvelopeShape(a *Artifact) error {
	resolved, err := EnvelopeSchema()
	if err != nil {
		return err
	}
	doc, err := toSchemaDoc(a)
	if err != nil {
		return err
	}
	return resolved.Validate(doc)
}

func toSchemaDoc(a *Artifact) (map[string]any, error) {
	b, err := a.ToJSON()
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// supportedMajor is the only schema_version major this build
// understands. A document stamped with a newer or older major is
// refused outright rather than risk misinterpreting its data payload.
const supportedMajor = 1

// CheckSchemaVersion enforces spec §6's rule: "producers MUST refuse to
// deserialize a document whose major schema version they do not
// recognize." Only the leading MAJOR component of "MAJOR.MINOR.PATCH"
// is checked: it must be an integer equal to supportedMajor; minor and
// patch are neither validated nor required to match.
func CheckSchemaVersion(version string) error {
	major, _, _, err := parseSchemaVersion(version)
	if err != nil {
		return err
	}
	if major != supportedMajor {
		return fmt.Errorf("unsupported schema_version %q: major %d, want %d", version, major, supportedMajor)
	}
	return nil
}

func parseSchemaVersion(version string) (major, minor, patch int, err error) {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) == 0 || parts[0] == "" {
		return 0, 0, 0, fmt.Errorf("empty schema_version")
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid schema_version major %q: %w", parts[0], err)
	}
	if len(parts) > 1 {
		minor, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		patch, _ = strconv.Atoi(parts[2])
	}
	return major, minor, patch, nil
}
