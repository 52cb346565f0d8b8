package storagemock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agentflow-runner/services/graph"
	"agentflow-runner/services/storage"
)

type StorageMock struct {
	GetWorkflowMock    func(ctx context.Context, id uuid.UUID) (*storage.Workflow, error)
	ListWorkflowsMock  func(ctx context.Context, owner string) ([]storage.Summary, error)
	UpsertWorkflowMock func(ctx context.Context, wf *storage.Workflow) error
	DeleteWorkflowMock func(ctx context.Context, id uuid.UUID) error
}

var _ storage.Storage = (*StorageMock)(nil)

// SampleWorkflow is the default workflow returned by GetWorkflow: a const
// greeting exposed through an output node.
func SampleWorkflow(id uuid.UUID) *storage.Workflow {
	return &storage.Workflow{
		ID:    id,
		Owner: "demo",
		Name:  "Hello Workflow",
		Nodes: []graph.Node{
			{
				ID:       "greeting",
				Kind:     graph.KindConst,
				Params:   map[string]any{"value": `"hello"`},
				Position: graph.Position{X: -160, Y: 300},
			},
			{
				ID:       "out",
				Kind:     graph.KindOutput,
				Inputs:   map[string]string{"from_node": "greeting"},
				Position: graph.Position{X: 160, Y: 300},
			},
		},
	}
}

func (m *StorageMock) GetWorkflow(ctx context.Context, wfUUID uuid.UUID) (*storage.Workflow, error) {
	if m != nil && m.GetWorkflowMock != nil {
		return m.GetWorkflowMock(ctx, wfUUID)
	}
	return SampleWorkflow(wfUUID), nil
}

func (m *StorageMock) ListWorkflows(ctx context.Context, owner string) ([]storage.Summary, error) {
	if m != nil && m.ListWorkflowsMock != nil {
		return m.ListWorkflowsMock(ctx, owner)
	}
	wf := SampleWorkflow(uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"))
	return []storage.Summary{{
		ID:         wf.ID,
		Owner:      wf.Owner,
		Name:       wf.Name,
		NodeCount:  len(wf.Nodes),
		ModifiedAt: time.Now(),
	}}, nil
}

func (m *StorageMock) UpsertWorkflow(ctx context.Context, wf *storage.Workflow) error {
	if m != nil && m.UpsertWorkflowMock != nil {
		return m.UpsertWorkflowMock(ctx, wf)
	}
	return nil
}

func (m *StorageMock) DeleteWorkflow(ctx context.Context, wfUUID uuid.UUID) error {
	if m != nil && m.DeleteWorkflowMock != nil {
		return m.DeleteWorkflowMock(ctx, wfUUID)
	}
	return nil
}
