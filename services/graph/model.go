package graph

import (
	"slices"
	"sort"
)

// Kind selects the evaluation rule for a node. The set is closed.
type Kind string

const (
	KindInput        Kind = "input"
	KindConst        Kind = "const"
	KindImage        Kind = "image"
	KindMap          Kind = "map"
	KindHTTP         Kind = "http"
	KindSearch       Kind = "search"
	KindLLM          Kind = "llm"
	KindLoop         Kind = "loop"
	KindIterationVar Kind = "iteration_var"
	KindOutput       Kind = "output"
)

// Input slot names.
const (
	SlotEach     = "each"
	SlotURL      = "url"
	SlotQuery    = "query"
	SlotPrompt   = "prompt"
	SlotSystem   = "system"
	SlotImage    = "image"
	SlotCount    = "count"
	SlotBody     = "body"
	SlotFromNode = "from_node"
)

var kindSlots = map[Kind][]string{
	KindInput:        nil,
	KindConst:        nil,
	KindImage:        nil,
	KindMap:          {SlotEach},
	KindHTTP:         {SlotURL},
	KindSearch:       {SlotQuery},
	KindLLM:          {SlotPrompt, SlotSystem, SlotImage},
	KindLoop:         {SlotCount, SlotBody},
	KindIterationVar: nil,
	KindOutput:       {SlotFromNode},
}

// Kinds returns every operation kind in palette order.
func Kinds() []Kind {
	return []Kind{
		KindInput, KindConst, KindImage, KindMap, KindHTTP,
		KindSearch, KindLLM, KindLoop, KindIterationVar, KindOutput,
	}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindSlots[k]
	return ok
}

// Slots returns the declared input slots for the kind, in declaration order.
func (k Kind) Slots() []string {
	return slices.Clone(kindSlots[k])
}

// Position is the node's canvas coordinate. The engine ignores it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a single operation in a workflow graph. Inputs map a slot name
// to the id of the node feeding it; an empty id means the slot is unset.
type Node struct {
	ID       string            `json:"id" yaml:"id"`
	Kind     Kind              `json:"op" yaml:"op"`
	Inputs   map[string]string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Params   map[string]any    `json:"params,omitempty" yaml:"params,omitempty"`
	Position Position          `json:"position" yaml:"position,omitempty"`
}

// Ref is one outgoing reference from a node's input slot.
type Ref struct {
	Slot   string
	Target string
}

// Refs returns the node's non-empty input references. Declared slots come
// first in declaration order, then any extra slots sorted by name, so
// diagnostics are stable regardless of map iteration order.
func (n Node) Refs() []Ref {
	if len(n.Inputs) == 0 {
		return nil
	}
	declared := kindSlots[n.Kind]
	refs := make([]Ref, 0, len(n.Inputs))
	for _, slot := range declared {
		if target := n.Inputs[slot]; target != "" {
			refs = append(refs, Ref{Slot: slot, Target: target})
		}
	}

	var extra []string
	for slot, target := range n.Inputs {
		if target == "" || slices.Contains(declared, slot) {
			continue
		}
		extra = append(extra, slot)
	}
	sort.Strings(extra)
	for _, slot := range extra {
		refs = append(refs, Ref{Slot: slot, Target: n.Inputs[slot]})
	}
	return refs
}

// Input returns the source id wired to slot, or "" when unset.
func (n Node) Input(slot string) string {
	return n.Inputs[slot]
}

// Param returns the raw parameter value and whether it was set.
func (n Node) Param(name string) (any, bool) {
	v, ok := n.Params[name]
	return v, ok
}

// StringParam returns the parameter as a string, or "" if absent or not a string.
func (n Node) StringParam(name string) string {
	s, _ := n.Params[name].(string)
	return s
}

// Graph is an ordered collection of nodes. Order is authoring order and is
// the iteration order for validation and resolution passes.
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
}

// New builds a graph from nodes, preserving their order.
func New(nodes ...Node) *Graph {
	return &Graph{Nodes: nodes}
}

// Lookup returns the first node with the given id.
func (g *Graph) Lookup(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Index maps node ids to their position in g.Nodes. When ids repeat, the
// first occurrence wins.
func (g *Graph) Index() map[string]int {
	if g == nil {
		return map[string]int{}
	}
	idx := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		if _, seen := idx[n.ID]; !seen {
			idx[n.ID] = i
		}
	}
	return idx
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}
