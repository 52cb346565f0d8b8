package graph_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"agentflow-runner/services/graph"
)

func node(id string, kind graph.Kind, inputs map[string]string) graph.Node {
	return graph.Node{ID: id, Kind: kind, Inputs: inputs}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		nodes      []graph.Node
		wantReason graph.Reason
		wantMsg    []string // substrings expected in the diagnostic
	}{
		{
			name: "sound graph",
			nodes: []graph.Node{
				node("c", graph.KindConst, nil),
				node("m", graph.KindMap, map[string]string{"each": "c"}),
				node("out", graph.KindOutput, map[string]string{"from_node": "m"}),
			},
		},
		{
			name:  "empty graph is sound",
			nodes: nil,
		},
		{
			name: "unset slots are ignored",
			nodes: []graph.Node{
				node("llm", graph.KindLLM, map[string]string{"prompt": "", "system": ""}),
			},
		},
		{
			name: "duplicate id",
			nodes: []graph.Node{
				node("dup", graph.KindConst, nil),
				node("dup", graph.KindConst, nil),
			},
			wantReason: graph.ReasonDuplicateID,
			wantMsg:    []string{"Duplicate node ID", "'dup'"},
		},
		{
			name:       "empty id",
			nodes:      []graph.Node{node("", graph.KindConst, nil)},
			wantReason: graph.ReasonEmptyID,
			wantMsg:    []string{"empty ID", "'const'"},
		},
		{
			name:       "blank id counts as empty",
			nodes:      []graph.Node{node("   ", graph.KindMap, nil)},
			wantReason: graph.ReasonEmptyID,
		},
		{
			name:       "whitespace in id",
			nodes:      []graph.Node{node("my node", graph.KindConst, nil)},
			wantReason: graph.ReasonWhitespaceID,
			wantMsg:    []string{"'my node'", "whitespace"},
		},
		{
			name: "dangling reference",
			nodes: []graph.Node{
				node("m", graph.KindMap, map[string]string{"each": "ghost"}),
			},
			wantReason: graph.ReasonDanglingReference,
			wantMsg:    []string{"'m'", "'each'", "'ghost'"},
		},
		{
			name: "identifier errors win over dangling references",
			nodes: []graph.Node{
				node("m", graph.KindMap, map[string]string{"each": "ghost"}),
				node("m", graph.KindConst, nil),
			},
			wantReason: graph.ReasonDuplicateID,
		},
		{
			name: "three node cycle",
			nodes: []graph.Node{
				node("a", graph.KindOutput, map[string]string{"from_node": "c"}),
				node("b", graph.KindOutput, map[string]string{"from_node": "a"}),
				node("c", graph.KindOutput, map[string]string{"from_node": "b"}),
			},
			wantReason: graph.ReasonCycle,
			wantMsg:    []string{"Cycle detected: a -> c -> b -> a"},
		},
		{
			name: "self reference",
			nodes: []graph.Node{
				node("loop", graph.KindLoop, map[string]string{"count": "n", "body": "loop"}),
				node("n", graph.KindConst, nil),
			},
			wantReason: graph.ReasonCycle,
			wantMsg:    []string{"loop -> loop"},
		},
		{
			name: "dangling references win over cycles",
			nodes: []graph.Node{
				node("a", graph.KindOutput, map[string]string{"from_node": "b"}),
				node("b", graph.KindOutput, map[string]string{"from_node": "a"}),
				node("c", graph.KindMap, map[string]string{"each": "ghost"}),
			},
			wantReason: graph.ReasonDanglingReference,
		},
		{
			name: "extra slots are still checked",
			nodes: []graph.Node{
				node("c", graph.KindConst, map[string]string{"legacy": "ghost"}),
			},
			wantReason: graph.ReasonDanglingReference,
			wantMsg:    []string{"'legacy'"},
		},
		{
			name: "diamond is not a cycle",
			nodes: []graph.Node{
				node("top", graph.KindConst, nil),
				node("left", graph.KindMap, map[string]string{"each": "top"}),
				node("right", graph.KindMap, map[string]string{"each": "top"}),
				node("llm", graph.KindLLM, map[string]string{"prompt": "left", "system": "right"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := graph.Validate(graph.New(tt.nodes...))

			if tt.wantReason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected %s error, got nil", tt.wantReason)
			}

			var se *graph.StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("expected *StructuralError, got %T", err)
			}
			if se.Reason != tt.wantReason {
				t.Errorf("reason: got %q, want %q (%v)", se.Reason, tt.wantReason, err)
			}
			if !errors.Is(err, graph.ErrStructural) {
				t.Error("expected error to match ErrStructural")
			}
			for _, want := range tt.wantMsg {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("expected message to contain %q, got %q", want, err.Error())
				}
			}
		})
	}
}

func TestValidate_CycleMatchesErrCycle(t *testing.T) {
	t.Parallel()
	g := graph.New(
		node("a", graph.KindOutput, map[string]string{"from_node": "b"}),
		node("b", graph.KindOutput, map[string]string{"from_node": "a"}),
	)
	err := graph.Validate(g)
	if !errors.Is(err, graph.ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}

	var se *graph.StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StructuralError, got %T", err)
	}
	if se.Path[0] != se.Path[len(se.Path)-1] {
		t.Errorf("cycle path should start and end on the repeated node, got %v", se.Path)
	}
}

func TestValidate_DeepChainDoesNotRecurse(t *testing.T) {
	t.Parallel()
	const depth = 100_000
	nodes := make([]graph.Node, 0, depth)
	nodes = append(nodes, node("n0", graph.KindConst, nil))
	for i := 1; i < depth; i++ {
		nodes = append(nodes, node(fmt.Sprintf("n%d", i), graph.KindOutput,
			map[string]string{"from_node": fmt.Sprintf("n%d", i-1)}))
	}
	if err := graph.Validate(graph.New(nodes...)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// genGraph draws a graph with a mix of sound and broken shapes: ids come
// from a small alphabet so duplicates, dangling references and cycles all
// occur.
func genGraph(t *rapid.T) *graph.Graph {
	ids := []string{"a", "b", "c", "d", "e", "", "f g"}
	count := rapid.IntRange(0, 6).Draw(t, "count")
	nodes := make([]graph.Node, 0, count)
	for i := 0; i < count; i++ {
		id := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("id%d", i))
		target := rapid.SampledFrom(append(ids, "ghost")).Draw(t, fmt.Sprintf("target%d", i))
		nodes = append(nodes, node(id, graph.KindOutput, map[string]string{"from_node": target}))
	}
	return graph.New(nodes...)
}

func TestValidate_Idempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := genGraph(t)
		before := fmt.Sprint(g.Nodes)

		first := graph.Validate(g)
		second := graph.Validate(g)

		if fmt.Sprint(first) != fmt.Sprint(second) {
			t.Fatalf("validator is not idempotent: %v vs %v", first, second)
		}
		if fmt.Sprint(g.Nodes) != before {
			t.Fatalf("validator mutated the graph")
		}
	})
}
