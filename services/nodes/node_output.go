package nodes

import "agentflow-runner/services/graph"

// OutputNode exposes the value of another node under its own id.
type OutputNode struct {
	BaseFields

	FromNode string
}

func NewOutputNode(base BaseFields, n graph.Node) *OutputNode {
	return &OutputNode{BaseFields: base, FromNode: n.Input(graph.SlotFromNode)}
}
