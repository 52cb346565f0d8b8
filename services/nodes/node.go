package nodes

import (
	"strings"

	"agentflow-runner/pkg/clients/fetch"
	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/search"
	"agentflow-runner/services/graph"
)

// BaseFields holds what every operation shares: its node id and kind.
type BaseFields struct {
	ID       string
	NodeKind graph.Kind
}

func (b BaseFields) NodeID() string   { return b.ID }
func (b BaseFields) Kind() graph.Kind { return b.NodeKind }
func (BaseFields) operation()         {}

// Operation is one typed node of the dispatch table. The set of
// implementations is closed: InputNode, ConstNode, ImageNode, MapNode,
// HTTPNode, SearchNode, LLMNode, LoopNode, IterationVarNode, OutputNode.
// Callers match it with a type switch.
type Operation interface {
	NodeID() string
	Kind() graph.Kind
	operation()
}

// Adapters holds the effectful collaborators used by http, search and llm
// nodes. Passed into the executor so nodes stay decoupled from concrete
// providers.
type Adapters struct {
	LLM    llm.Client
	Search search.Client
	HTTP   fetch.Client
}

// ModelDefaults are the fallback models of one provider.
type ModelDefaults struct {
	Text  string
	Image string
}

// Defaults configures provider and model fallbacks for llm and search nodes.
type Defaults struct {
	Provider string
	Models   map[string]ModelDefaults
}

// fallbackModel is used for providers without configured model defaults.
const fallbackModel = "default"

// StandardDefaults returns the stock provider configuration.
func StandardDefaults() Defaults {
	return Defaults{
		Provider: "google",
		Models: map[string]ModelDefaults{
			"google": {Text: "gemini-2.5-flash", Image: "gemini-2.5-flash-image"},
		},
	}
}

// ResolveProvider returns the trimmed provider parameter, or the default
// provider when the parameter is blank.
func (d Defaults) ResolveProvider(param string) string {
	if p := strings.TrimSpace(param); p != "" {
		return p
	}
	if d.Provider != "" {
		return d.Provider
	}
	return StandardDefaults().Provider
}

// ResolveModel returns the model parameter, or the provider's default for
// image or text requests.
func (d Defaults) ResolveModel(provider, param string, hasImage bool) string {
	if m := strings.TrimSpace(param); m != "" {
		return m
	}
	md, ok := d.Models[provider]
	if !ok {
		return fallbackModel
	}
	if hasImage && md.Image != "" {
		return md.Image
	}
	if md.Text != "" {
		return md.Text
	}
	return fallbackModel
}

// New constructs the typed operation for a graph node from its params.
// Adding a new operation kind means adding a case here, a new file with its
// type, and a case in the executor's dispatch.
func New(n graph.Node, defaults Defaults) (Operation, error) {
	base := BaseFields{ID: n.ID, NodeKind: n.Kind}
	switch n.Kind {
	case graph.KindInput:
		return NewInputNode(base, n)
	case graph.KindConst:
		return NewConstNode(base, n), nil
	case graph.KindImage:
		return NewImageNode(base, n), nil
	case graph.KindMap:
		return NewMapNode(base, n)
	case graph.KindHTTP:
		return NewHTTPNode(base, n)
	case graph.KindSearch:
		return NewSearchNode(base, n, defaults)
	case graph.KindLLM:
		return NewLLMNode(base, n, defaults)
	case graph.KindLoop:
		return NewLoopNode(base, n), nil
	case graph.KindIterationVar:
		return NewIterationVarNode(base, n)
	case graph.KindOutput:
		return NewOutputNode(base, n), nil
	default:
		return nil, base.typeErrorf("unknown operation kind %q", n.Kind)
	}
}

// stringParam reads an optional string parameter, failing when the value
// is set to something other than a string.
func stringParam(base BaseFields, n graph.Node, name string) (string, error) {
	v, ok := n.Param(name)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", base.typeErrorf("parameter '%s' must be a string, got %s", name, TypeName(v))
	}
	return s, nil
}
