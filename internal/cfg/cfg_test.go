package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestGraph() *Graph {
	g := ForFunction("test_func")
	g.AddBlock("entry")
	g.AddBlock("loop_header")
	g.AddBlock("loop_body")
	g.AddBlock("exit")

	g.AddSimpleEdge("entry", "loop_header", Branch)
	g.AddSimpleEdge("loop_header", "loop_body", Branch)
	g.AddSimpleEdge("loop_header", "exit", Branch)
	g.AddSimpleEdge("loop_body", "loop_header", Branch)
	return g
}

func TestGraph_New(t *testing.T) {
	g := New()
	assert.True(t, g.IsEmpty())
	assert.Equal(t, 0, g.BlockCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestGraph_ForFunction(t *testing.T) {
	g := ForFunction("test_func")
	assert.Equal(t, "test_func", g.FunctionID)
}

func TestGraph_AddBlocksAndEdges(t *testing.T) {
	g := New()
	g.AddBlock("block1")
	g.AddBlock("block2")
	g.AddEdge(NewEdge("block1", "block2", Branch))

	assert.Equal(t, 2, g.BlockCount())
	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, []string{"block2"}, g.Successors("block1"))
	assert.Equal(t, []string{"block1"}, g.Predecessors("block2"))
}

func TestGraph_EntryAndExitBlocks(t *testing.T) {
	g := buildTestGraph()
	assert.Equal(t, []string{"entry"}, g.EntryBlocks())
	assert.Equal(t, []string{"exit"}, g.ExitBlocks())
}

func TestGraph_CyclomaticComplexity(t *testing.T) {
	g := buildTestGraph()
	// M = E - N + 2 = 4 - 4 + 2 = 2
	assert.Equal(t, 2, g.CyclomaticComplexity())
}

func TestGraph_HasCycles(t *testing.T) {
	g := buildTestGraph()
	assert.True(t, g.HasCycles())

	acyclic := New()
	acyclic.AddBlock("a")
	acyclic.AddBlock("b")
	acyclic.AddSimpleEdge("a", "b", Branch)
	assert.False(t, acyclic.HasCycles())
}

func TestGraph_Validate(t *testing.T) {
	g := New()
	g.AddBlock("valid")
	g.AddEdge(NewEdge("valid", "valid", Branch))
	assert.NoError(t, g.Validate())

	g.Edges = append(g.Edges, NewEdge("valid", "unknown", Branch))
	assert.Error(t, g.Validate())
}

func TestGraph_ValidateRejectsOutOfRangeConfidence(t *testing.T) {
	g := New()
	g.AddBlock("a")
	g.AddBlock("b")
	g.AddEdge(NewEdge("a", "b", Branch).WithConfidence(1.5))
	assert.Error(t, g.Validate())
}

func TestGraph_Statistics(t *testing.T) {
	g := buildTestGraph()
	stats := g.Statistics()

	assert.Equal(t, 4, stats.BlockCount)
	assert.Equal(t, 4, stats.EdgeCount)
	assert.Equal(t, 1, stats.EntryBlocks)
	assert.Equal(t, 1, stats.ExitBlocks)
	assert.Equal(t, 2, stats.CyclomaticComplexity)
	assert.True(t, stats.HasCycles)
	assert.Equal(t, 4, stats.EdgeKindCounts[Branch])
}

func TestGraph_Subgraph(t *testing.T) {
	g := buildTestGraph()
	sub := g.Subgraph([]string{"entry", "loop_header"})
	require.Equal(t, 2, sub.BlockCount())
	assert.Equal(t, 1, sub.EdgeCount())
}

func TestCallGraph_AddEdgeRegistersNodes(t *testing.T) {
	cg := NewCallGraph()
	cg.AddEdge(CallGraphEdge{Caller: "main", Callee: "helper", Kind: CallDirect})
	assert.ElementsMatch(t, []string{"main", "helper"}, cg.Nodes)
	assert.Equal(t, []string{"helper"}, cg.Callees("main"))
	assert.Equal(t, []string{"main"}, cg.Callers("helper"))
}
