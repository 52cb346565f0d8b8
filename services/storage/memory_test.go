package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"agentflow-runner/services/graph"
	"agentflow-runner/services/storage"
)

func TestMemory_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()

	id := uuid.New()
	wf := &storage.Workflow{
		ID:    id,
		Owner: "ada",
		Name:  "Greeter",
		Nodes: []graph.Node{{ID: "c", Kind: graph.KindConst, Params: map[string]any{"value": "1"}}},
	}
	if err := store.UpsertWorkflow(ctx, wf); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}
	if err := store.UpsertWorkflow(ctx, &storage.Workflow{ID: uuid.New(), Owner: "bob", Name: "Other"}); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	got, err := store.GetWorkflow(ctx, id)
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	got.Nodes[0].Params["value"] = "mutated"
	again, _ := store.GetWorkflow(ctx, id)
	if again.Nodes[0].StringParam("value") != "1" {
		t.Error("stored workflow shares state with returned copy")
	}

	list, err := store.ListWorkflows(ctx, "ada")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(list) != 1 || list[0].ID != id || list[0].NodeCount != 1 {
		t.Errorf("unexpected list for ada: %+v", list)
	}
	if all, _ := store.ListWorkflows(ctx, ""); len(all) != 2 {
		t.Errorf("expected 2 workflows across owners, got %d", len(all))
	}

	if err := store.DeleteWorkflow(ctx, id); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := store.GetWorkflow(ctx, id); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected ErrNoRows after delete, got %v", err)
	}
	if err := store.DeleteWorkflow(ctx, id); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected ErrNoRows on second delete, got %v", err)
	}

	if err := store.UpsertWorkflow(ctx, wf); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	if _, err := store.GetWorkflow(ctx, id); err != nil {
		t.Errorf("expected restored workflow, got %v", err)
	}
}
