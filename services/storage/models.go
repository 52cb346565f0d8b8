package storage

import (
	"time"

	"github.com/google/uuid"

	"agentflow-runner/services/graph"
)

// Workflow is a saved graph document. Nodes are kept in authoring order,
// which is also the resolution pass order.
type Workflow struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	Owner      string       `json:"owner" db:"owner"`
	Name       string       `json:"name" db:"name"`
	Nodes      []graph.Node `json:"nodes" db:"-"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
	ModifiedAt time.Time    `json:"modifiedAt" db:"modified_at"`
	DeletedAt  *time.Time   `json:"deletedAt,omitempty" db:"deleted_at"`
}

// Graph returns the workflow's nodes as a graph.
func (w *Workflow) Graph() *graph.Graph {
	return graph.New(w.Nodes...)
}

// Document returns the authoring document form: id, name and nodes, without
// ownership or timestamps.
func (w *Workflow) Document() graph.Document {
	return graph.Document{ID: w.ID.String(), Name: w.Name, Nodes: w.Nodes}
}

// Summary is the list view of a workflow.
type Summary struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Owner      string    `json:"owner" db:"owner"`
	Name       string    `json:"name" db:"name"`
	NodeCount  int       `json:"nodeCount" db:"node_count"`
	ModifiedAt time.Time `json:"modifiedAt" db:"modified_at"`
}
