// Package artifact implements the typed result envelopes the triage
// pipeline and its enrichment passes produce: the generic Artifact
// envelope, the top-level TriageArtifact, and the stable ID scheme that
// ties entities together across tools and passes (spec §3, §6).
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Kind classifies the entity an ID names.
type Kind string

const (
	KindBinary      Kind = "Binary"
	KindFunction    Kind = "Function"
	KindBasicBlock  Kind = "BasicBlock"
	KindSymbol      Kind = "Symbol"
	KindSection     Kind = "Section"
	KindSegment     Kind = "Segment"
	KindInstruction Kind = "Instruction"
	KindVariable    Kind = "Variable"
	KindDataType    Kind = "DataType"
	KindEntity      Kind = "Entity"
)

// ID is a stable identifier for an entity in the analysis system: a
// grammar-constructed string value paired with the Kind that produced
// it. IDs are value objects, cheap to copy and never mutated.
type ID struct {
	Value string
	Kind  Kind
}

// String returns the ID's string value.
func (id ID) String() string { return id.Value }

// Valid reports whether the ID carries a non-empty value.
func (id ID) Valid() bool { return id.Value != "" }

// BinaryFromContent derives a content-addressed binary ID:
// "bin:sha256:<hex>", optionally salted with path to distinguish
// identical content opened from different locations.
func BinaryFromContent(content []byte, path string) ID {
	h := sha256.New()
	h.Write(content)
	if path != "" {
		h.Write([]byte(":"))
		h.Write([]byte(path))
	}
	return ID{Value: "bin:sha256:" + hex.EncodeToString(h.Sum(nil)), Kind: KindBinary}
}

// BinaryFromUUID derives a binary ID from an external UUID or build-id
// (e.g. an ELF GNU build-id or a Mach-O LC_UUID), for inputs where
// content hashing is unsuitable or unavailable.
func BinaryFromUUID(id string) ID {
	return ID{Value: "bin:uuid:" + id, Kind: KindBinary}
}

// FunctionID derives a deterministic function ID from a binary ID and
// its entry address.
func FunctionID(binaryID, address string) ID {
	return ID{Value: fmt.Sprintf("func:%s:%s", binaryID, address), Kind: KindFunction}
}

// BasicBlockID derives a deterministic basic-block ID from a binary ID
// and the block's start address.
func BasicBlockID(binaryID, address string) ID {
	return ID{Value: fmt.Sprintf("bb:%s:%s", binaryID, address), Kind: KindBasicBlock}
}

// SymbolID derives a symbol ID from a name and an optional address
// (empty string omits the address component).
func SymbolID(name, address string) ID {
	if address == "" {
		return ID{Value: "sym:" + name, Kind: KindSymbol}
	}
	return ID{Value: fmt.Sprintf("sym:%s:%s", name, address), Kind: KindSymbol}
}

// SectionID derives a section ID from an optional name and an optional
// index (hasIndex distinguishes index 0 from "no index").
func SectionID(name string, index uint32, hasIndex bool) ID {
	switch {
	case name != "" && hasIndex:
		return ID{Value: fmt.Sprintf("sect:%s:%d", name, index), Kind: KindSection}
	case name != "":
		return ID{Value: "sect:" + name, Kind: KindSection}
	case hasIndex:
		return ID{Value: "sect:idx:" + strconv.FormatUint(uint64(index), 10), Kind: KindSection}
	default:
		return ID{Value: "sect:unknown", Kind: KindSection}
	}
}

// SegmentID derives a segment ID from an optional name and an optional
// index, mirroring SectionID.
func SegmentID(name string, index uint32, hasIndex bool) ID {
	switch {
	case name != "" && hasIndex:
		return ID{Value: fmt.Sprintf("seg:%s:%d", name, index), Kind: KindSegment}
	case name != "":
		return ID{Value: "seg:" + name, Kind: KindSegment}
	case hasIndex:
		return ID{Value: "seg:idx:" + strconv.FormatUint(uint64(index), 10), Kind: KindSegment}
	default:
		return ID{Value: "seg:unknown", Kind: KindSegment}
	}
}

// InstructionID derives an instruction ID from its address.
func InstructionID(address string) ID {
	return ID{Value: "insn:" + address, Kind: KindInstruction}
}

// VariableID derives a variable ID from a containing context (typically
// a function ID), an optional name, and an optional byte offset within
// that context.
func VariableID(context, name string, offset int64, hasOffset bool) ID {
	switch {
	case name != "" && hasOffset:
		return ID{Value: fmt.Sprintf("var:%s:%s:%d", context, name, offset), Kind: KindVariable}
	case name != "":
		return ID{Value: fmt.Sprintf("var:%s:%s", context, name), Kind: KindVariable}
	case hasOffset:
		return ID{Value: fmt.Sprintf("var:%s:offset:%d", context, offset), Kind: KindVariable}
	default:
		return ID{Value: fmt.Sprintf("var:%s:unnamed", context), Kind: KindVariable}
	}
}

// DataTypeID derives a data-type ID from an optional name and an
// optional content hash (for anonymous/structural types).
func DataTypeID(name, contentHash string) ID {
	switch {
	case name != "" && contentHash != "":
		return ID{Value: fmt.Sprintf("type:%s:%s", name, contentHash), Kind: KindDataType}
	case name != "":
		return ID{Value: "type:" + name, Kind: KindDataType}
	case contentHash != "":
		return ID{Value: "type:anon:" + contentHash, Kind: KindDataType}
	default:
		return ID{Value: "type:unknown", Kind: KindDataType}
	}
}

// EntityID derives a generic "kind:identifier" entity ID for cases not
// covered by a more specific constructor (e.g. cross-reference nodes).
func EntityID(entityType, identifier string) ID {
	return ID{Value: entityType + ":" + identifier, Kind: KindEntity}
}

// NewUUID mints a random UUID-based ID for a kind, for cases where a
// deterministic or content-addressed ID isn't suitable.
func NewUUID(kind Kind) ID {
	return ID{Value: strings.ToLower(string(kind)) + ":uuid:" + uuid.NewString(), Kind: kind}
}

// HashID derives a short hash-based ID from arbitrary content: the
// first 8 bytes of the content's SHA-256 digest, hex-encoded.
func HashID(kind Kind, content string) ID {
	sum := sha256.Sum256([]byte(content))
	return ID{Value: strings.ToLower(string(kind)) + ":hash:" + hex.EncodeToString(sum[:8]), Kind: kind}
}
