package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"agentflow-runner/services/graph"
)

// Memory is an in-process Storage used when no database is configured.
type Memory struct {
	mu        sync.RWMutex
	workflows map[uuid.UUID]*Workflow
	now       func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		workflows: make(map[uuid.UUID]*Workflow),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) GetWorkflow(_ context.Context, id uuid.UUID) (*Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[id]
	if !ok || wf.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	return cloneWorkflow(wf), nil
}

func (m *Memory) ListWorkflows(_ context.Context, owner string) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := []Summary{}
	for _, wf := range m.workflows {
		if wf.DeletedAt != nil || (owner != "" && wf.Owner != owner) {
			continue
		}
		list = append(list, Summary{
			ID:         wf.ID,
			Owner:      wf.Owner,
			Name:       wf.Name,
			NodeCount:  len(wf.Nodes),
			ModifiedAt: wf.ModifiedAt,
		})
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ModifiedAt.Equal(list[j].ModifiedAt) {
			return list[i].ModifiedAt.After(list[j].ModifiedAt)
		}
		return list[i].ID.String() < list[j].ID.String()
	})
	return list, nil
}

func (m *Memory) UpsertWorkflow(_ context.Context, wf *Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if prev, ok := m.workflows[wf.ID]; ok && wf.CreatedAt.IsZero() {
		wf.CreatedAt = prev.CreatedAt
	}
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.ModifiedAt = now

	stored := cloneWorkflow(wf)
	stored.DeletedAt = nil
	m.workflows[wf.ID] = stored
	return nil
}

func (m *Memory) DeleteWorkflow(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[id]
	if !ok || wf.DeletedAt != nil {
		return pgx.ErrNoRows
	}
	now := m.now()
	wf.DeletedAt = &now
	wf.Nodes = nil
	return nil
}

func cloneWorkflow(wf *Workflow) *Workflow {
	out := *wf
	out.Nodes = make([]graph.Node, len(wf.Nodes))
	for i, n := range wf.Nodes {
		n.Inputs = maps.Clone(n.Inputs)
		n.Params = maps.Clone(n.Params)
		out.Nodes[i] = n
	}
	return &out
}
