// Package cfg implements the control-flow graph data model and the
// bounded, deterministic worklist disassembler of spec §4.5: function
// discovery, basic-block partitioning, intra-procedural CFG
// construction, and call-graph assembly from an entrypoint and a
// symbol-derived seed set.
package cfg

import (
	"github.com/standardbeagle/bintriage/internal/addr"
)

// EdgeKind is the kind of an intra-procedural control-flow edge.
type EdgeKind string

const (
	Fallthrough EdgeKind = "fallthrough"
	Branch      EdgeKind = "branch"
	Call        EdgeKind = "call"
	Return      EdgeKind = "return"
)

// Edge is one control-flow transition between two basic blocks,
// identified by their stable string IDs.
type Edge struct {
	FromBlockID string
	ToBlockID   string
	Kind        EdgeKind
	Confidence  *float64
}

// NewEdge builds an Edge with no confidence score.
func NewEdge(from, to string, kind EdgeKind) Edge {
	return Edge{FromBlockID: from, ToBlockID: to, Kind: kind}
}

// WithConfidence returns a copy of e carrying the given confidence.
func (e Edge) WithConfidence(confidence float64) Edge {
	e.Confidence = &confidence
	return e
}

// Graph is intra-procedural control flow for a single function, keyed
// by stable block-ID strings (`bb_<hex>`) so it serializes trivially
// without pointer cycles.
type Graph struct {
	FunctionID string
	BlockIDs   []string
	Edges      []Edge
}

// New returns an empty, function-less graph.
func New() *Graph {
	return &Graph{}
}

// ForFunction returns an empty graph scoped to functionID.
func ForFunction(functionID string) *Graph {
	return &Graph{FunctionID: functionID}
}

// AddBlock registers blockID if not already present.
func (g *Graph) AddBlock(blockID string) {
	for _, id := range g.BlockIDs {
		if id == blockID {
			return
		}
	}
	g.BlockIDs = append(g.BlockIDs, blockID)
}

// AddBlocks registers every block in blockIDs.
func (g *Graph) AddBlocks(blockIDs []string) {
	for _, id := range blockIDs {
		g.AddBlock(id)
	}
}

// AddEdge appends e, registering both of its endpoints as blocks.
func (g *Graph) AddEdge(e Edge) {
	g.AddBlock(e.FromBlockID)
	g.AddBlock(e.ToBlockID)
	g.Edges = append(g.Edges, e)
}

// AddSimpleEdge is a convenience wrapper around AddEdge for an edge
// with no confidence score.
func (g *Graph) AddSimpleEdge(from, to string, kind EdgeKind) {
	g.AddEdge(NewEdge(from, to, kind))
}

// RemoveEdge deletes every edge matching (from, to, kind).
func (g *Graph) RemoveEdge(from, to string, kind EdgeKind) {
	out := g.Edges[:0]
	for _, e := range g.Edges {
		if e.FromBlockID == from && e.ToBlockID == to && e.Kind == kind {
			continue
		}
		out = append(out, e)
	}
	g.Edges = out
}

// OutgoingEdges returns every edge whose source is blockID.
func (g *Graph) OutgoingEdges(blockID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.FromBlockID == blockID {
			out = append(out, e)
		}
	}
	return out
}

// IncomingEdges returns every edge whose target is blockID.
func (g *Graph) IncomingEdges(blockID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.ToBlockID == blockID {
			out = append(out, e)
		}
	}
	return out
}

// Successors returns the target block IDs of blockID's outgoing edges.
func (g *Graph) Successors(blockID string) []string {
	var out []string
	for _, e := range g.OutgoingEdges(blockID) {
		out = append(out, e.ToBlockID)
	}
	return out
}

// Predecessors returns the source block IDs of blockID's incoming edges.
func (g *Graph) Predecessors(blockID string) []string {
	var out []string
	for _, e := range g.IncomingEdges(blockID) {
		out = append(out, e.FromBlockID)
	}
	return out
}

// HasPredecessors reports whether blockID has any incoming edge.
func (g *Graph) HasPredecessors(blockID string) bool {
	return len(g.Predecessors(blockID)) > 0
}

// HasSuccessors reports whether blockID has any outgoing edge.
func (g *Graph) HasSuccessors(blockID string) bool {
	return len(g.Successors(blockID)) > 0
}

// EntryBlocks returns every block with no predecessors.
func (g *Graph) EntryBlocks() []string {
	var out []string
	for _, id := range g.BlockIDs {
		if !g.HasPredecessors(id) {
			out = append(out, id)
		}
	}
	return out
}

// ExitBlocks returns every block with no successors.
func (g *Graph) ExitBlocks() []string {
	var out []string
	for _, id := range g.BlockIDs {
		if !g.HasSuccessors(id) {
			out = append(out, id)
		}
	}
	return out
}

// IsEmpty reports whether the graph has no blocks.
func (g *Graph) IsEmpty() bool { return len(g.BlockIDs) == 0 }

// BlockCount returns the number of blocks.
func (g *Graph) BlockCount() int { return len(g.BlockIDs) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.Edges) }

// CyclomaticComplexity computes M = E - N + 2 for a single connected
// component (spec §9's "cyclomatic complexity" definition).
func (g *Graph) CyclomaticComplexity() int {
	if g.IsEmpty() {
		return 0
	}
	m := g.EdgeCount() - g.BlockCount() + 2
	if m < 0 {
		return 0
	}
	return m
}

// HasCycles reports whether the graph contains any cycle, via DFS with
// a recursion stack.
func (g *Graph) HasCycles() bool {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	for _, id := range g.BlockIDs {
		if !visited[id] && g.hasCycleDFS(id, visited, onStack) {
			return true
		}
	}
	return false
}

func (g *Graph) hasCycleDFS(blockID string, visited, onStack map[string]bool) bool {
	visited[blockID] = true
	onStack[blockID] = true
	for _, succ := range g.Successors(blockID) {
		if !visited[succ] {
			if g.hasCycleDFS(succ, visited, onStack) {
				return true
			}
		} else if onStack[succ] {
			return true
		}
	}
	onStack[blockID] = false
	return false
}

// Validate checks that every edge endpoint names a known block, that
// BlockIDs has no duplicates, and that every confidence value (when
// present) lies in [0,1].
func (g *Graph) Validate() error {
	known := make(map[string]bool, len(g.BlockIDs))
	for _, id := range g.BlockIDs {
		if known[id] {
			return &DuplicateBlockError{BlockID: id}
		}
		known[id] = true
	}
	for _, e := range g.Edges {
		if !known[e.FromBlockID] {
			return &UnknownBlockError{BlockID: e.FromBlockID, Role: "source"}
		}
		if !known[e.ToBlockID] {
			return &UnknownBlockError{BlockID: e.ToBlockID, Role: "target"}
		}
		if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
			return &InvalidConfidenceError{Value: *e.Confidence}
		}
	}
	return nil
}

// Subgraph returns a new Graph containing exactly blockIDs and the
// edges whose endpoints both fall in that set.
func (g *Graph) Subgraph(blockIDs []string) *Graph {
	set := make(map[string]bool, len(blockIDs))
	for _, id := range blockIDs {
		set[id] = true
	}
	out := &Graph{FunctionID: g.FunctionID, BlockIDs: append([]string(nil), blockIDs...)}
	for _, e := range g.Edges {
		if set[e.FromBlockID] && set[e.ToBlockID] {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Stats summarizes a Graph's shape.
type Stats struct {
	BlockCount            int
	EdgeCount             int
	EntryBlocks           int
	ExitBlocks            int
	CyclomaticComplexity  int
	HasCycles             bool
	EdgeKindCounts        map[EdgeKind]int
}

// Statistics computes a Stats summary of g.
func (g *Graph) Statistics() Stats {
	counts := make(map[EdgeKind]int)
	for _, e := range g.Edges {
		counts[e.Kind]++
	}
	return Stats{
		BlockCount:           g.BlockCount(),
		EdgeCount:            g.EdgeCount(),
		EntryBlocks:          len(g.EntryBlocks()),
		ExitBlocks:           len(g.ExitBlocks()),
		CyclomaticComplexity: g.CyclomaticComplexity(),
		HasCycles:            g.HasCycles(),
		EdgeKindCounts:       counts,
	}
}

// DuplicateBlockError reports a block ID appearing twice in a Graph.
type DuplicateBlockError struct{ BlockID string }

func (e *DuplicateBlockError) Error() string { return "cfg: duplicate block id " + e.BlockID }

// UnknownBlockError reports an edge endpoint naming a block not present
// in the graph.
type UnknownBlockError struct {
	BlockID string
	Role    string
}

func (e *UnknownBlockError) Error() string {
	return "cfg: edge references unknown " + e.Role + " block " + e.BlockID
}

// InvalidConfidenceError reports an edge confidence outside [0,1].
type InvalidConfidenceError struct{ Value float64 }

func (e *InvalidConfidenceError) Error() string {
	return "cfg: invalid edge confidence (must be in [0,1])"
}

// BasicBlock is a maximal straight-line instruction run: [Start, End)
// with no internal control-flow transfer.
type BasicBlock struct {
	ID                  string
	Start               addr.Address
	End                 addr.Address
	InstructionCount    uint32
	SuccessorIDs        []string
	PredecessorIDs      []string
	RelationshipsKnown  bool
}

// FunctionKind classifies how a Function was discovered.
type FunctionKind string

const (
	FunctionNormal  FunctionKind = "normal"
	FunctionThunk   FunctionKind = "thunk"
	FunctionLibrary FunctionKind = "library"
)

// Function is a discovered function: its entry point, its basic
// blocks, and the CFG tying them together.
type Function struct {
	Name        string
	EntryPoint  addr.Address
	Kind        FunctionKind
	BasicBlocks []BasicBlock
	Graph       *Graph
}

// NewFunction returns an empty Function scoped to a for-function Graph.
func NewFunction(name string, entry addr.Address, kind FunctionKind) *Function {
	return &Function{Name: name, EntryPoint: entry, Kind: kind, Graph: ForFunction(name)}
}

// AddBasicBlock appends bb and registers its ID with the function's
// Graph.
func (f *Function) AddBasicBlock(bb BasicBlock) {
	f.BasicBlocks = append(f.BasicBlocks, bb)
	f.Graph.AddBlock(bb.ID)
}

// AddEdge records a control-flow edge between the blocks starting at
// from and to (addresses, not block IDs); it is a no-op if either
// address is not a known block start.
func (f *Function) AddEdge(from, to addr.Address, kind EdgeKind) {
	fromID, toID := "", ""
	for _, bb := range f.BasicBlocks {
		if bb.Start.Value == from.Value {
			fromID = bb.ID
		}
		if bb.Start.Value == to.Value {
			toID = bb.ID
		}
	}
	if fromID == "" || toID == "" {
		return
	}
	f.Graph.AddSimpleEdge(fromID, toID, kind)
}

// Budgets bounds a single function-discovery pass (spec §4.5): crossing
// any of them ends the pass gracefully with partial results.
type Budgets struct {
	MaxFunctions    int
	MaxBlocks       int
	MaxInstructions int
	TimeoutMS       int64
}

// DefaultBudgets returns the documented conservative defaults.
func DefaultBudgets() Budgets {
	return Budgets{MaxFunctions: 64, MaxBlocks: 2048, MaxInstructions: 50_000, TimeoutMS: 100}
}

