package nodes

import (
	"strings"

	"agentflow-runner/services/graph"
)

// InputNode receives a value bound by the caller before resolution starts.
// It is never dispatched; the executor seeds its binding through Coerce.
type InputNode struct {
	BaseFields

	// Type is the declared value type: "string" (default) or "number".
	Type string
}

func NewInputNode(base BaseFields, n graph.Node) (*InputNode, error) {
	typ, err := stringParam(base, n, "type")
	if err != nil {
		return nil, err
	}
	typ = strings.TrimSpace(typ)
	if typ == "" {
		typ = "string"
	}
	return &InputNode{BaseFields: base, Type: typ}, nil
}

// Coerce converts a bound value to the declared type. Only "number" inputs
// are converted; other values pass through unchanged.
func (n *InputNode) Coerce(v any) (any, error) {
	if n.Type != "number" {
		return v, nil
	}
	f, ok := toNumber(v)
	if !ok {
		return nil, n.typeErrorf("value %q cannot be converted to a number", Stringify(v))
	}
	return f, nil
}
