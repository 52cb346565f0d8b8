package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the authoring format for a saved workflow: a name and its
// ordered node list.
type Document struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// Graph returns the document's graph.
func (d *Document) Graph() *Graph {
	return &Graph{Nodes: d.Nodes}
}

// DecodeDocument parses a workflow document from JSON or YAML. JSON is
// tried first when the payload starts with '{'.
func DecodeDocument(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty workflow document")
	}

	var doc Document
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("invalid workflow JSON: %w", err)
		}
		return &doc, nil
	}

	if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("invalid workflow YAML: %w", err)
	}
	for i := range doc.Nodes {
		doc.Nodes[i].Params = normalizeYAML(doc.Nodes[i].Params)
	}
	return &doc, nil
}

// normalizeYAML converts YAML-decoded params into the shapes JSON decoding
// would produce (float64 numbers, map[string]any mappings) so the engine
// sees one value model.
func normalizeYAML(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case map[string]any:
		return normalizeYAML(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

// IR is the intermediate representation exported for a sound graph:
// inputs and outputs are lifted out of the node table.
type IR struct {
	Name    string            `json:"name"`
	Inputs  map[string]IRPort `json:"inputs"`
	Outputs map[string]IRSink `json:"outputs"`
	Nodes   map[string]IRNode `json:"nodes"`
}

type IRPort struct {
	Type string `json:"type"`
}

type IRSink struct {
	FromNode string `json:"from_node"`
}

type IRNode struct {
	Op     Kind              `json:"op"`
	Inputs map[string]string `json:"inputs,omitempty"`
	Params map[string]any    `json:"params,omitempty"`
}

// BuildIR validates g and converts it to its IR. A graph that fails
// validation has no IR.
func BuildIR(name string, g *Graph) (*IR, error) {
	if err := Validate(g); err != nil {
		return nil, fmt.Errorf("cannot generate IR: %w", err)
	}

	ir := &IR{
		Name:    name,
		Inputs:  map[string]IRPort{},
		Outputs: map[string]IRSink{},
		Nodes:   map[string]IRNode{},
	}
	for _, n := range g.Nodes {
		switch n.Kind {
		case KindInput:
			typ := strings.TrimSpace(n.StringParam("type"))
			if typ == "" {
				typ = "string"
			}
			ir.Inputs[n.ID] = IRPort{Type: typ}
		case KindOutput:
			ir.Outputs[n.ID] = IRSink{FromNode: n.Input(SlotFromNode)}
		default:
			ir.Nodes[n.ID] = IRNode{Op: n.Kind, Inputs: n.Inputs, Params: n.Params}
		}
	}
	return ir, nil
}
