package workflow

import (
	"strings"

	"agentflow-runner/services/graph"
)

// loopScopes records, per node, the loops whose iteration counter the node
// needs. A node reading an iteration_var of loop L needs L; so does every
// node downstream of it, except L itself.
type loopScopes map[string]map[string]struct{}

type visitState uint8

const (
	unvisited visitState = iota
	inProgress
	done
)

// analyzeScopes computes loop scopes bottom-up with an explicit stack.
// References into a cycle contribute nothing; such graphs stall later and are
// reported as unresolved.
func analyzeScopes(g *graph.Graph, index map[string]int) loopScopes {
	isLoop := func(id string) bool {
		i, ok := index[id]
		return ok && g.Nodes[i].Kind == graph.KindLoop
	}

	scopes := make(loopScopes, len(g.Nodes))
	state := make(map[string]visitState, len(g.Nodes))

	for _, root := range g.Nodes {
		if state[root.ID] != unvisited {
			continue
		}
		stack := []string{root.ID}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			n := g.Nodes[index[id]]

			switch state[id] {
			case unvisited:
				state[id] = inProgress
				for _, ref := range n.Refs() {
					if _, ok := index[ref.Target]; ok && state[ref.Target] == unvisited {
						stack = append(stack, ref.Target)
					}
				}
			case inProgress:
				scopes[id] = scopeOf(n, scopes, isLoop)
				state[id] = done
				stack = stack[:len(stack)-1]
			default:
				stack = stack[:len(stack)-1]
			}
		}
	}
	return scopes
}

func scopeOf(n graph.Node, scopes loopScopes, isLoop func(string) bool) map[string]struct{} {
	var need map[string]struct{}
	add := func(loopID string) {
		if need == nil {
			need = make(map[string]struct{})
		}
		need[loopID] = struct{}{}
	}

	if n.Kind == graph.KindIterationVar {
		if loopID := strings.TrimSpace(n.StringParam("loopId")); isLoop(loopID) {
			add(loopID)
		}
	}
	for _, ref := range n.Refs() {
		for loopID := range scopes[ref.Target] {
			// A loop never waits on its own counter.
			if n.Kind == graph.KindLoop && loopID == n.ID {
				continue
			}
			add(loopID)
		}
	}
	return need
}

// loopBodies returns every node reachable from some loop's body slot.
func loopBodies(g *graph.Graph, index map[string]int) map[string]bool {
	covered := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.Kind != graph.KindLoop {
			continue
		}
		body := n.Input(graph.SlotBody)
		if _, ok := index[body]; !ok || covered[body] {
			continue
		}
		queue := []string{body}
		covered[body] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, ref := range g.Nodes[index[id]].Refs() {
				if _, ok := index[ref.Target]; ok && !covered[ref.Target] {
					covered[ref.Target] = true
					queue = append(queue, ref.Target)
				}
			}
		}
	}
	return covered
}
