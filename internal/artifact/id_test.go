package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBinaryFromContent_IsDeterministic(t *testing.T) {
	content := []byte("test binary content")
	id1 := BinaryFromContent(content, "test.exe")
	id2 := BinaryFromContent(content, "test.exe")
	assert.Equal(t, id1, id2)
	assert.True(t, id1.Valid())
	assert.Equal(t, KindBinary, id1.Kind)
	assert.Contains(t, id1.Value, "bin:sha256:")
}

func TestBinaryFromUUID(t *testing.T) {
	id := BinaryFromUUID("12345678-1234-1234-1234-123456789abc")
	assert.Equal(t, "bin:uuid:12345678-1234-1234-1234-123456789abc", id.Value)
}

func TestFunctionAndBasicBlockID(t *testing.T) {
	assert.Equal(t, "func:bin:sha256:abcd:0x401000", FunctionID("bin:sha256:abcd", "0x401000").Value)
	assert.Equal(t, "bb:bin:sha256:abcd:0x401000", BasicBlockID("bin:sha256:abcd", "0x401000").Value)
}

func TestSymbolID(t *testing.T) {
	assert.Equal(t, "sym:CreateFileW:0x401000", SymbolID("CreateFileW", "0x401000").Value)
	assert.Equal(t, "sym:kernel32.dll", SymbolID("kernel32.dll", "").Value)
}

func TestSectionID(t *testing.T) {
	assert.Equal(t, "sect:.text:1", SectionID(".text", 1, true).Value)
	assert.Equal(t, "sect:.data", SectionID(".data", 0, false).Value)
	assert.Equal(t, "sect:idx:3", SectionID("", 3, true).Value)
	assert.Equal(t, "sect:unknown", SectionID("", 0, false).Value)
}

func TestInstructionID(t *testing.T) {
	assert.Equal(t, "insn:0x401000", InstructionID("0x401000").Value)
}

func TestVariableID(t *testing.T) {
	assert.Equal(t, "var:func:main:local_var:8", VariableID("func:main", "local_var", 8, true).Value)
	assert.Equal(t, "var:func:main:unnamed", VariableID("func:main", "", 0, false).Value)
}

func TestDataTypeID(t *testing.T) {
	assert.Equal(t, "type:int32:hash123", DataTypeID("int32", "hash123").Value)
	assert.Equal(t, "type:unknown", DataTypeID("", "").Value)
}

func TestEntityID(t *testing.T) {
	assert.Equal(t, "reference:xref_123", EntityID("reference", "xref_123").Value)
}

func TestNewUUID_StableKindPrefix(t *testing.T) {
	id := NewUUID(KindBinary)
	assert.Contains(t, id.Value, "binary:uuid:")
	assert.Greater(t, len(id.Value), 20)
}

func TestHashID(t *testing.T) {
	id := HashID(KindFunction, "test content")
	assert.Contains(t, id.Value, "function:hash:")
}
