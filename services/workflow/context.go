package workflow

// Context maps node ids to resolved values for one resolution run. A loop
// iteration gets a child layered over its parent: reads fall through to the
// parent, writes stay in the child, so discarding the child discards the
// iteration's state without copying the parent.
type Context struct {
	parent   *Context
	values   map[string]any
	counters map[string]int
}

func newContext() *Context {
	return &Context{values: make(map[string]any)}
}

// child returns an iteration layer recording index i for loopID.
func (c *Context) child(loopID string, i int) *Context {
	return &Context{
		parent:   c,
		values:   make(map[string]any),
		counters: map[string]int{loopID: i},
	}
}

// Get returns the value resolved for id in this layer or any ancestor.
func (c *Context) Get(id string) (any, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.values[id]; ok {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether id has been resolved.
func (c *Context) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// counter returns the current iteration index of loopID.
func (c *Context) counter(loopID string) (int, bool) {
	for cur := c; cur != nil; cur = cur.parent {
		if i, ok := cur.counters[loopID]; ok {
			return i, true
		}
	}
	return 0, false
}

// set records a value in this layer. Each id is written once per layer.
func (c *Context) set(id string, v any) {
	c.values[id] = v
}

// Snapshot flattens the layers into a single map. Entries in inner layers
// shadow their ancestors.
func (c *Context) Snapshot() map[string]any {
	var chain []*Context
	for cur := c; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].values {
			out[k] = v
		}
	}
	return out
}
