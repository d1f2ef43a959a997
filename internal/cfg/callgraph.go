package cfg

// CallType classifies how a call-graph edge was resolved.
type CallType string

const (
	CallDirect   CallType = "direct"
	CallIndirect CallType = "indirect"
	CallPLT      CallType = "plt"
)

// CallGraphEdge is one caller-to-callee relationship, keyed by function
// name rather than pointer so the (naturally cyclic) graph serializes
// without ownership puzzles.
type CallGraphEdge struct {
	Caller string
	Callee string
	Kind   CallType
}

// CallGraph is a name-keyed, flat-table call graph (spec §9's "avoid
// pointer cycles" guidance): every node is a function name string, and
// edges reference nodes by that name.
type CallGraph struct {
	Nodes []string
	Edges []CallGraphEdge
}

// NewCallGraph returns an empty call graph.
func NewCallGraph() *CallGraph {
	return &CallGraph{}
}

// AddNode registers name if not already present.
func (cg *CallGraph) AddNode(name string) {
	for _, n := range cg.Nodes {
		if n == name {
			return
		}
	}
	cg.Nodes = append(cg.Nodes, name)
}

// AddEdge appends e, registering both endpoints as nodes.
func (cg *CallGraph) AddEdge(e CallGraphEdge) {
	cg.AddNode(e.Caller)
	cg.AddNode(e.Callee)
	cg.Edges = append(cg.Edges, e)
}

// Callees returns every name caller directly calls.
func (cg *CallGraph) Callees(caller string) []string {
	var out []string
	for _, e := range cg.Edges {
		if e.Caller == caller {
			out = append(out, e.Callee)
		}
	}
	return out
}

// Callers returns every name that directly calls callee.
func (cg *CallGraph) Callers(callee string) []string {
	var out []string
	for _, e := range cg.Edges {
		if e.Callee == callee {
			out = append(out, e.Caller)
		}
	}
	return out
}
