package nodes

import (
	"regexp"

	"agentflow-runner/services/graph"
)

// itemPlaceholder is the only substitution the map template supports.
var itemPlaceholder = regexp.MustCompile(`\{\{\s*item\s*\}\}`)

// MapNode renders its "fn" template once per element of the "each" input.
type MapNode struct {
	BaseFields

	Template string
}

func NewMapNode(base BaseFields, n graph.Node) (*MapNode, error) {
	fn, err := stringParam(base, n, "fn")
	if err != nil {
		return nil, err
	}
	return &MapNode{BaseFields: base, Template: fn}, nil
}

// Render substitutes every {{ item }} placeholder with item's string form.
func (n *MapNode) Render(item any) string {
	s := Stringify(item)
	return itemPlaceholder.ReplaceAllLiteralString(n.Template, s)
}

// Apply maps each element of a sequence through the template. A string or
// number is rendered once into a single string.
func (n *MapNode) Apply(each any) (any, error) {
	if seq, ok := asSequence(each); ok {
		out := make([]any, len(seq))
		for i, item := range seq {
			out[i] = n.Render(item)
		}
		return out, nil
	}

	switch TypeName(each) {
	case "string", "number":
		return n.Render(each), nil
	default:
		return nil, n.typeErrorf("input 'each' must be a sequence, but received type %s", TypeName(each))
	}
}
