package nodes

import (
	"encoding/json"
	"log/slog"

	"agentflow-runner/services/graph"
)

// ConstNode holds a literal authored as JSON text in its "value" param.
type ConstNode struct {
	BaseFields

	raw any
}

func NewConstNode(base BaseFields, n graph.Node) *ConstNode {
	v, _ := n.Param("value")
	return &ConstNode{BaseFields: base, raw: v}
}

// Value parses the literal. Text that is not valid JSON is kept as a plain
// string; that fallback is logged as a warning so malformed literals are
// visible without changing the result. Non-string params pass through.
func (n *ConstNode) Value() any {
	text, ok := n.raw.(string)
	if !ok {
		return n.raw
	}
	if text == "" {
		return nil
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		slog.Warn("const value is not a JSON literal, using raw text", "node", n.ID, "error", err)
		return text
	}
	return v
}
