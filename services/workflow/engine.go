package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"agentflow-runner/services/graph"
	"agentflow-runner/services/nodes"
)

// Recorder observes node evaluations. Implemented by the metrics package.
type Recorder interface {
	NodeEvaluated(kind graph.Kind, status string, d time.Duration)
}

const (
	statusResolved = "resolved"
	statusFailed   = "failed"
)

// Executor resolves workflow graphs into values. It holds no per-run state
// and may be shared.
type Executor struct {
	adapters nodes.Adapters
	defaults nodes.Defaults
	recorder Recorder
}

// Option configures an Executor.
type Option func(*Executor)

// WithDefaults sets provider and model fallbacks for llm and search nodes.
func WithDefaults(d nodes.Defaults) Option {
	return func(e *Executor) { e.defaults = d }
}

// WithRecorder attaches an evaluation observer.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// NewExecutor creates an Executor using the given adapters.
func NewExecutor(adapters nodes.Adapters, opts ...Option) *Executor {
	e := &Executor{adapters: adapters, defaults: nodes.StandardDefaults()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the immutable per-execution view of a graph: typed operations and
// loop scoping, shared by the top-level resolution and every loop iteration.
type run struct {
	exec    *Executor
	graph   *graph.Graph
	index   map[string]int
	ops     map[string]nodes.Operation
	scopes  loopScopes
	covered map[string]bool
}

// Execute resolves every node of g and returns a snapshot of all values
// keyed by node id: bound inputs, intermediate nodes and outputs. Nodes that
// read a loop's iteration variable are resolved per iteration and surface
// through that loop's result. On failure no values are returned.
//
// The caller must only pass graphs accepted by graph.Validate.
func (e *Executor) Execute(ctx context.Context, g *graph.Graph, inputs map[string]any) (map[string]any, error) {
	if g == nil {
		g = graph.New()
	}
	r, err := e.plan(g)
	if err != nil {
		return nil, err
	}

	root := newContext()
	if err := r.seed(root, inputs); err != nil {
		return nil, err
	}

	pending := make([]string, 0, len(g.Nodes))
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Kind == graph.KindInput || seen[n.ID] || r.deferred(n.ID, root) {
			continue
		}
		seen[n.ID] = true
		pending = append(pending, n.ID)
	}

	if err := r.resolve(ctx, pending, root); err != nil {
		var re *ResolutionError
		if errors.As(err, &re) && re.LoopID == "" {
			slog.Warn("workflow stalled", "unresolved", re.Unresolved)
			if nerr := r.outsideLoop(re.Unresolved); nerr != nil {
				return nil, nerr
			}
		}
		return nil, err
	}
	return root.Snapshot(), nil
}

// outsideLoop explains a top-level stall caused by a node that needs a
// loop's iteration counter but is not part of that loop's body. A node that
// reads a body node directly is preferred over its dependants.
func (r *run) outsideLoop(unresolved []string) *nodes.NodeError {
	var first *nodes.NodeError
	for _, id := range unresolved {
		if r.covered[id] || len(r.scopes[id]) == 0 {
			continue
		}
		loopID := r.scopes.first(id)
		n := r.node(id)
		nerr := &nodes.NodeError{NodeID: id, Kind: n.Kind, Class: nodes.ErrResolution}
		for _, ref := range n.Refs() {
			if _, ok := r.scopes[ref.Target][loopID]; !ok {
				continue
			}
			nerr.Msg = fmt.Sprintf("reads '%s', which only resolves inside loop '%s'; it must be part of that loop's body", ref.Target, loopID)
			if r.covered[ref.Target] {
				return nerr
			}
			break
		}
		if nerr.Msg == "" {
			nerr.Msg = fmt.Sprintf("needs the iteration counter of loop '%s'; it must be part of that loop's body", loopID)
		}
		if first == nil {
			first = nerr
		}
	}
	return first
}

// plan constructs the typed operation of every node up front, so malformed
// params fail before any adapter is called.
func (e *Executor) plan(g *graph.Graph) (*run, error) {
	r := &run{
		exec:  e,
		graph: g,
		index: g.Index(),
		ops:   make(map[string]nodes.Operation, len(g.Nodes)),
	}
	for _, n := range g.Nodes {
		if _, ok := r.ops[n.ID]; ok {
			continue
		}
		op, err := nodes.New(n, e.defaults)
		if err != nil {
			return nil, err
		}
		r.ops[n.ID] = op
	}
	r.scopes = analyzeScopes(g, r.index)
	r.covered = loopBodies(g, r.index)
	return r, nil
}

// seed writes bound values of input nodes into c. Bindings for other ids
// are ignored.
func (r *run) seed(c *Context, inputs map[string]any) error {
	for id, v := range inputs {
		in, ok := r.ops[id].(*nodes.InputNode)
		if !ok {
			slog.Debug("ignoring binding for non-input node", "node", id)
			continue
		}
		coerced, err := in.Coerce(v)
		if err != nil {
			return err
		}
		c.set(id, coerced)
	}
	return nil
}

// deferred reports whether id belongs to a loop body that needs an
// iteration counter c does not carry.
func (r *run) deferred(id string, c *Context) bool {
	return r.covered[id] && r.scopes.deferred(id, c)
}

func (s loopScopes) deferred(id string, c *Context) bool {
	for loopID := range s[id] {
		if _, ok := c.counter(loopID); !ok {
			return true
		}
	}
	return false
}

// first returns the smallest loop id that id needs.
func (s loopScopes) first(id string) string {
	loops := make([]string, 0, len(s[id]))
	for loopID := range s[id] {
		loops = append(loops, loopID)
	}
	sort.Strings(loops)
	return loops[0]
}

func (r *run) node(id string) graph.Node {
	return r.graph.Nodes[r.index[id]]
}

// resolve runs fixed-point passes over pending until every node has a value
// in c or a pass makes no progress. Nodes are evaluated one at a time in
// pending order; the first failure aborts.
func (r *run) resolve(ctx context.Context, pending []string, c *Context) error {
	waiting := make(map[string]bool, len(pending))
	for _, id := range pending {
		waiting[id] = true
	}

	for len(pending) > 0 {
		progressed := false
		next := make([]string, 0, len(pending))

		for _, id := range pending {
			if !r.ready(id, c, waiting) {
				next = append(next, id)
				continue
			}
			v, err := r.evaluate(ctx, id, c)
			if err != nil {
				return err
			}
			c.set(id, v)
			delete(waiting, id)
			progressed = true
		}

		if !progressed {
			return &ResolutionError{Unresolved: next}
		}
		pending = next
	}
	return nil
}

// ready reports whether every input of id is resolved in c. A loop whose
// body runs per iteration waits instead for the waiting nodes its body reads.
func (r *run) ready(id string, c *Context, waiting map[string]bool) bool {
	n := r.node(id)
	for _, ref := range n.Refs() {
		if n.Kind == graph.KindLoop && ref.Slot == graph.SlotBody && r.deferred(ref.Target, c) {
			if r.blocked(ref.Target, c, waiting) {
				return false
			}
			continue
		}
		if !c.Has(ref.Target) {
			return false
		}
	}
	return true
}

// blocked reports whether the unresolved region upstream of root reads a
// node that is still waiting in the current pass.
func (r *run) blocked(root string, c *Context, waiting map[string]bool) bool {
	visited := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if waiting[id] {
			return true
		}
		for _, ref := range r.node(id).Refs() {
			if _, ok := r.index[ref.Target]; !ok || visited[ref.Target] || c.Has(ref.Target) {
				continue
			}
			visited[ref.Target] = true
			queue = append(queue, ref.Target)
		}
	}
	return false
}

func (r *run) evaluate(ctx context.Context, id string, c *Context) (any, error) {
	op := r.ops[id]
	start := time.Now()
	slog.Debug("evaluating node", "node", id, "kind", op.Kind())

	v, err := r.dispatch(ctx, op, c)

	status := statusResolved
	if err != nil {
		status = statusFailed
	}
	if r.exec.recorder != nil {
		r.exec.recorder.NodeEvaluated(op.Kind(), status, time.Since(start))
	}
	return v, err
}

func (r *run) dispatch(ctx context.Context, op nodes.Operation, c *Context) (any, error) {
	n := r.node(op.NodeID())
	in := func(slot string) any {
		v, _ := c.Get(n.Input(slot))
		return v
	}
	adapters := r.exec.adapters

	switch op := op.(type) {
	case *nodes.InputNode:
		return nil, &ResolutionError{Unresolved: []string{op.ID}}
	case *nodes.ConstNode:
		return op.Value(), nil
	case *nodes.ImageNode:
		return op.Value(), nil
	case *nodes.MapNode:
		return op.Apply(in(graph.SlotEach))
	case *nodes.HTTPNode:
		return op.Execute(ctx, adapters.HTTP, in(graph.SlotURL))
	case *nodes.SearchNode:
		return op.Execute(ctx, adapters.Search, in(graph.SlotQuery))
	case *nodes.LLMNode:
		return op.Execute(ctx, adapters.LLM, in(graph.SlotPrompt), in(graph.SlotSystem), in(graph.SlotImage))
	case *nodes.LoopNode:
		return r.loop(ctx, op, in(graph.SlotCount), c)
	case *nodes.IterationVarNode:
		return op.Resolve(c.counter)
	case *nodes.OutputNode:
		return in(graph.SlotFromNode), nil
	default:
		return nil, fmt.Errorf("node '%s': unsupported operation %T", op.NodeID(), op)
	}
}

// loop evaluates the body subgraph once per iteration, each time in a fresh
// layer over c. Only the body's value leaves the iteration.
func (r *run) loop(ctx context.Context, op *nodes.LoopNode, count any, c *Context) (any, error) {
	iterations, err := op.Iterations(count)
	if err != nil {
		return nil, err
	}
	if err := op.CheckBody(r.graph); err != nil {
		return nil, err
	}

	results := make([]any, 0, iterations)
	for i := 0; i < iterations; i++ {
		iter := c.child(op.ID, i)
		if err := r.resolve(ctx, r.closure(op.Body, iter), iter); err != nil {
			var re *ResolutionError
			if errors.As(err, &re) && re.LoopID == "" {
				re.LoopID, re.Iteration = op.ID, i
			}
			return nil, err
		}
		v, ok := iter.Get(op.Body)
		if !ok {
			return nil, &ResolutionError{Unresolved: []string{op.Body}, LoopID: op.ID, Iteration: i}
		}
		results = append(results, v)
	}
	return results, nil
}

// closure collects the nodes reachable from root through input references
// that still need a value in c, in graph order. Resolved nodes, inputs and
// nodes belonging to inner loops are not part of the closure.
func (r *run) closure(root string, c *Context) []string {
	include := func(id string) bool {
		return !c.Has(id) && r.node(id).Kind != graph.KindInput && !r.deferred(id, c)
	}

	var members []string
	visited := map[string]bool{root: true}
	queue := []string{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if !include(id) {
			continue
		}
		members = append(members, id)
		for _, ref := range r.node(id).Refs() {
			if _, ok := r.index[ref.Target]; ok && !visited[ref.Target] {
				visited[ref.Target] = true
				queue = append(queue, ref.Target)
			}
		}
	}

	sort.Slice(members, func(i, j int) bool {
		return r.index[members[i]] < r.index[members[j]]
	})
	return members
}

// Outputs projects a result snapshot onto the graph's output nodes.
func Outputs(g *graph.Graph, snapshot map[string]any) map[string]any {
	out := make(map[string]any)
	for _, n := range g.Nodes {
		if n.Kind != graph.KindOutput {
			continue
		}
		if v, ok := snapshot[n.ID]; ok {
			out[n.ID] = v
		}
	}
	return out
}
