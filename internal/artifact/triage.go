package artifact

import (
	"encoding/json"
	"time"

	"github.com/standardbeagle/bintriage/internal/entropy"
	"github.com/standardbeagle/bintriage/internal/format/elf"
	"github.com/standardbeagle/bintriage/internal/format/pe"
	"github.com/standardbeagle/bintriage/internal/packer"
	"github.com/standardbeagle/bintriage/internal/sniff"
	"github.com/standardbeagle/bintriage/internal/strscan"
)

// Hashes collects the digests computed once over the whole input.
type Hashes struct {
	MD5    string `json:"md5,omitempty"`
	SHA1   string `json:"sha1,omitempty"`
	SHA256 string `json:"sha256"`
}

// Signal is one piece of weighted evidence a pipeline stage contributed
// to a verdict (spec §4.3 stage 6's "weighted signals").
type Signal struct {
	Source sniff.Source `json:"source"`
	Label  string       `json:"label"`
	Weight float64      `json:"weight"`
}

// Verdict is one ranked format/architecture hypothesis (spec §3's
// TriageVerdict). Confidence is clamped to [0,1] and monotone in
// weighted evidence by construction (see internal/triage's fuse stage).
type Verdict struct {
	Format      string   `json:"format"`
	Arch        string   `json:"arch"`
	Bits        int      `json:"bits"`
	Endianness  string   `json:"endianness"`
	Confidence  float64  `json:"confidence"`
	SignalNames []string `json:"signals"`
}

// SymbolsSummary condenses the symbol-enrichment pass (internal/symbols)
// into counts and the handful of string lists a triage report surfaces
// directly, instead of the full import/export tables a deeper pass
// would retain.
type SymbolsSummary struct {
	ImportCount      int      `json:"import_count"`
	ExportCount      int      `json:"export_count"`
	Imphash          string   `json:"imphash,omitempty"`
	SuspiciousAPIs   []string `json:"suspicious_apis,omitempty"`
	TLSCallbackCount int      `json:"tls_callback_count"`
	PDBPath          string   `json:"pdb_path,omitempty"`

	// ELF-only: resolved from the dynamic section (spec §2 L7).
	Needed  []string `json:"needed,omitempty"`
	SONAME  string   `json:"soname,omitempty"`
	RPath   string   `json:"rpath,omitempty"`
	RunPath string   `json:"runpath,omitempty"`
}

// EntropySummary condenses internal/entropy's overall + sliding-window
// pass into the fields a triage report needs: the whole-file entropy,
// its classification bucket, and any detected anomalies.
type EntropySummary struct {
	Overall        float64              `json:"overall"`
	Classification entropy.Classification `json:"classification"`
	WindowMin      float64              `json:"window_min,omitempty"`
	WindowMax      float64              `json:"window_max,omitempty"`
	WindowMean     float64              `json:"window_mean,omitempty"`
	Anomalies      []entropy.Anomaly    `json:"anomalies,omitempty"`
}

// Budgets reports the resource accounting a single triage run consumed,
// so a caller can tell a thorough verdict from one truncated by limits.
type Budgets struct {
	BytesRead     int64 `json:"bytes_read"`
	MaxReadBytes  int64 `json:"max_read_bytes"`
	TimedOut      bool  `json:"timed_out"`
}

// TriageArtifact is the top-level output of the triage pipeline (spec
// §3, §4.3): a ranked set of format verdicts plus every summary the
// pipeline's stages computed along the way. verdicts[0], when present,
// is the primary classification.
type TriageArtifact struct {
	ID             string                `json:"id"`
	CreatedAt      time.Time             `json:"created_at"`
	Path           string                `json:"path,omitempty"`
	Size           int64                 `json:"size"`
	Hashes         Hashes                `json:"hashes"`
	Verdicts       []Verdict             `json:"verdicts"`
	Signals        []Signal              `json:"signals,omitempty"`
	StringsSummary *strscan.Summary      `json:"strings_summary,omitempty"`
	SymbolsSummary *SymbolsSummary       `json:"symbols_summary,omitempty"`
	Entropy        *EntropySummary       `json:"entropy,omitempty"`
	Packers        []packer.Hit          `json:"packers,omitempty"`
	Overlay        *packer.Overlay       `json:"overlay,omitempty"`
	PESecurity     *pe.SecurityFeatures  `json:"pe_security,omitempty"`
	ELFSecurity    *elf.SecurityFeatures `json:"elf_security,omitempty"`
	RichHeader     *pe.RichHeader        `json:"rich_header,omitempty"`
	StubMap        map[uint64]string     `json:"stub_map,omitempty"`
	Budgets        Budgets               `json:"budgets"`
	Errors         []string              `json:"errors,omitempty"`
	SchemaVersion  string                `json:"schema_version"`
}

// NewTriageArtifact constructs an empty TriageArtifact for a given
// content-addressed ID, stamping CreatedAt and the default schema
// version. Callers fill in Verdicts/Signals/summaries as the pipeline's
// stages complete.
func NewTriageArtifact(id string) *TriageArtifact {
	return &TriageArtifact{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		SchemaVersion: DefaultSchemaVersion,
	}
}

// PrimaryVerdict returns the highest-ranked verdict, or the zero value
// and false when no verdict was produced (a well-formed error record
// should be present in Errors in that case, per spec §4.3's contract).
func (a *TriageArtifact) PrimaryVerdict() (Verdict, bool) {
	if len(a.Verdicts) == 0 {
		return Verdict{}, false
	}
	return a.Verdicts[0], true
}

// ToJSON serializes the triage artifact to its canonical JSON form.
func (a *TriageArtifact) ToJSON() ([]byte, error) {
	return json.Marshal(a)
}

// TriageArtifactFromJSON deserializes a TriageArtifact, enforcing the
// same schema-version major-compatibility gate as the generic envelope,
// except that a missing schema_version is read as DefaultSchemaVersion
// instead of being rejected.
func TriageArtifactFromJSON(data []byte) (*TriageArtifact, error) {
	var a TriageArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if a.SchemaVersion == "" {
		a.SchemaVersion = DefaultSchemaVersion
	}
	if err := CheckSchemaVersion(a.SchemaVersion); err != nil {
		return nil, err
	}
	return &a, nil
}
