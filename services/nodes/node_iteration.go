package nodes

import (
	"strings"

	"agentflow-runner/services/graph"
)

// IterationVarNode reads the current iteration index of an enclosing loop.
type IterationVarNode struct {
	BaseFields

	LoopID string
}

func NewIterationVarNode(base BaseFields, n graph.Node) (*IterationVarNode, error) {
	loopID, err := stringParam(base, n, "loopId")
	if err != nil {
		return nil, err
	}
	return &IterationVarNode{BaseFields: base, LoopID: strings.TrimSpace(loopID)}, nil
}

// Resolve returns the counter found by lookup for the node's loop. It fails
// when the loop id is unset or the node is evaluated outside that loop.
func (n *IterationVarNode) Resolve(lookup func(loopID string) (int, bool)) (any, error) {
	if n.LoopID == "" {
		return nil, n.resolutionErrorf("requires a 'loopId' parameter")
	}
	i, ok := lookup(n.LoopID)
	if !ok {
		return nil, n.resolutionErrorf("evaluated outside of loop '%s'", n.LoopID)
	}
	return float64(i), nil
}
