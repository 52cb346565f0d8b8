package graph

import (
	"strings"
	"unicode"
)

// Validate checks g for structural soundness and returns the first failure
// as a *StructuralError, or nil when the graph may be executed. Checks run in
// priority order: identifier integrity, connection integrity, acyclicity.
// Validate never mutates g.
func Validate(g *Graph) error {
	if g == nil {
		return nil
	}
	if err := validateIDs(g.Nodes); err != nil {
		return err
	}
	if err := validateConnections(g.Nodes); err != nil {
		return err
	}
	return detectCycle(g.Nodes)
}

func validateIDs(nodes []Node) error {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if strings.TrimSpace(n.ID) == "" {
			return &StructuralError{Reason: ReasonEmptyID, NodeID: n.ID, Kind: n.Kind}
		}
		if seen[n.ID] {
			return &StructuralError{Reason: ReasonDuplicateID, NodeID: n.ID, Kind: n.Kind}
		}
		if strings.IndexFunc(n.ID, unicode.IsSpace) >= 0 {
			return &StructuralError{Reason: ReasonWhitespaceID, NodeID: n.ID, Kind: n.Kind}
		}
		seen[n.ID] = true
	}
	return nil
}

func validateConnections(nodes []Node) error {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}
	for _, n := range nodes {
		for _, ref := range n.Refs() {
			if !ids[ref.Target] {
				return &StructuralError{
					Reason: ReasonDanglingReference,
					NodeID: n.ID,
					Kind:   n.Kind,
					Slot:   ref.Slot,
					Target: ref.Target,
				}
			}
		}
	}
	return nil
}

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

// frame is one entry of the explicit DFS stack: a node and the index of
// the next neighbour to explore.
type frame struct {
	id   string
	next int
}

// detectCycle runs an iterative depth-first search over the reference
// relation and reports the first back edge it meets. Roots are taken in
// node order.
func detectCycle(nodes []Node) error {
	adj := make(map[string][]string, len(nodes))
	kinds := make(map[string]Kind, len(nodes))
	for _, n := range nodes {
		kinds[n.ID] = n.Kind
	}
	for _, n := range nodes {
		targets := make([]string, 0, len(n.Inputs))
		for _, ref := range n.Refs() {
			if _, ok := kinds[ref.Target]; ok {
				targets = append(targets, ref.Target)
			}
		}
		adj[n.ID] = targets
	}

	state := make(map[string]visitState, len(nodes))
	for _, root := range nodes {
		if state[root.ID] != unvisited {
			continue
		}
		stack := []frame{{id: root.ID}}
		state[root.ID] = inProgress

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			neighbours := adj[top.id]
			if top.next >= len(neighbours) {
				state[top.id] = done
				stack = stack[:len(stack)-1]
				continue
			}
			next := neighbours[top.next]
			top.next++

			switch state[next] {
			case inProgress:
				path := make([]string, 0, len(stack)+1)
				for _, f := range stack {
					path = append(path, f.id)
				}
				path = append(path, next)
				return &StructuralError{
					Reason: ReasonCycle,
					NodeID: next,
					Kind:   kinds[next],
					Path:   path,
				}
			case unvisited:
				state[next] = inProgress
				stack = append(stack, frame{id: next})
			}
		}
	}
	return nil
}
