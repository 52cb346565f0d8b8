package nodes

import (
	"math"

	"agentflow-runner/services/graph"
)

// LoopNode re-evaluates the subgraph rooted at Body Count times.
type LoopNode struct {
	BaseFields

	Body string
}

func NewLoopNode(base BaseFields, n graph.Node) *LoopNode {
	return &LoopNode{BaseFields: base, Body: n.Input(graph.SlotBody)}
}

// Iterations coerces the resolved "count" input to a non-negative integer.
func (n *LoopNode) Iterations(count any) (int, error) {
	f, ok := toNumber(count)
	if count == nil || !ok || f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, n.typeErrorf("input 'count' must be a non-negative integer, got %s", Stringify(count))
	}
	return int(f), nil
}

// CheckBody reports a missing or unknown body reference.
func (n *LoopNode) CheckBody(g *graph.Graph) error {
	if n.Body == "" {
		return n.resolutionErrorf("requires a 'body' input")
	}
	if _, ok := g.Lookup(n.Body); !ok {
		return n.resolutionErrorf("could not find body node '%s'", n.Body)
	}
	return nil
}
