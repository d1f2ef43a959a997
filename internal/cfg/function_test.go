package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/bintriage/internal/addr"
)

func TestFunction_AddBasicBlockAndEdgeByAddress(t *testing.T) {
	entry, err := addr.New(addr.VA, 0x1000, 64)
	require.NoError(t, err)
	mid, err := addr.New(addr.VA, 0x1010, 64)
	require.NoError(t, err)

	fn := NewFunction("sub_1000", entry, FunctionNormal)
	fn.AddBasicBlock(BasicBlock{ID: "bb_1000", Start: entry, End: mid, InstructionCount: 3})
	fn.AddBasicBlock(BasicBlock{ID: "bb_1010", Start: mid, End: mid, InstructionCount: 1})

	fn.AddEdge(entry, mid, Branch)

	assert.Equal(t, []string{"bb_1010"}, fn.Graph.Successors("bb_1000"))
	assert.Equal(t, FunctionNormal, fn.Kind)
	assert.Equal(t, "sub_1000", fn.Graph.FunctionID)
}

func TestFunction_AddEdgeIgnoresUnknownAddress(t *testing.T) {
	entry, err := addr.New(addr.VA, 0x1000, 64)
	require.NoError(t, err)
	unknown, err := addr.New(addr.VA, 0x2000, 64)
	require.NoError(t, err)

	fn := NewFunction("sub_1000", entry, FunctionNormal)
	fn.AddBasicBlock(BasicBlock{ID: "bb_1000", Start: entry, End: entry})
	fn.AddEdge(entry, unknown, Branch)

	assert.Empty(t, fn.Graph.Edges)
}
