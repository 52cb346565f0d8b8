package nodes

import "agentflow-runner/services/graph"

// ImageNode passes its "value" param (a data URL, or null) through unchanged.
type ImageNode struct {
	BaseFields

	value any
}

func NewImageNode(base BaseFields, n graph.Node) *ImageNode {
	v, _ := n.Param("value")
	return &ImageNode{BaseFields: base, value: v}
}

func (n *ImageNode) Value() any {
	return n.value
}
