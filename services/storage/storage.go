package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agentflow-runner/services/graph"
)

// queryTimeout bounds every storage call.
const queryTimeout = 5 * time.Second

// DB abstracts the database operations used by the storage layer.
// Satisfied by *pgxpool.Pool in production and pgxmock in tests.
type DB interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Storage defines the interface for workflow data access.
// Missing or deleted workflows are reported as pgx.ErrNoRows by every
// implementation.
type Storage interface {
	GetWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error)
	ListWorkflows(ctx context.Context, owner string) ([]Summary, error)
	UpsertWorkflow(ctx context.Context, wf *Workflow) error
	DeleteWorkflow(ctx context.Context, id uuid.UUID) error
}

// PgStorage implements Storage on PostgreSQL.
type PgStorage struct {
	DB DB
}

// NewInstance creates a new PostgreSQL-backed Storage implementation.
func NewInstance(db *pgxpool.Pool) (Storage, error) {
	if db == nil {
		return nil, fmt.Errorf("repository: db connection cannot be nil")
	}
	return &PgStorage{DB: db}, nil
}

var (
	readTx  = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	writeTx = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}
)

// inTx runs fn in a transaction, committing on success and rolling back on
// any error.
func (r *PgStorage) inTx(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow header and its nodes in authoring order.
// Both reads share one snapshot so a concurrent save is never seen halfway.
func (r *PgStorage) GetWorkflow(ctx context.Context, id uuid.UUID) (*Workflow, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	wf := &Workflow{ID: id, Nodes: []graph.Node{}}
	err := r.inTx(ctx, readTx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
            SELECT owner, name, created_at, modified_at
            FROM workflows
            WHERE id = $1 AND deleted_at IS NULL`,
			id).Scan(&wf.Owner, &wf.Name, &wf.CreatedAt, &wf.ModifiedAt)
		if err != nil {
			return err // pgx.ErrNoRows if not found
		}

		rows, err := tx.Query(ctx, `
            SELECT node_id, op, inputs, params, x_pos, y_pos
            FROM workflow_nodes
            WHERE workflow_id = $1
            ORDER BY ordinal`,
			id)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				n              graph.Node
				op             string
				inputs, params json.RawMessage
			)
			if err := rows.Scan(&n.ID, &op, &inputs, &params, &n.Position.X, &n.Position.Y); err != nil {
				return err
			}
			n.Kind = graph.Kind(op)
			if err := decodeJSONB(inputs, &n.Inputs); err != nil {
				return fmt.Errorf("node %q inputs: %w", n.ID, err)
			}
			if err := decodeJSONB(params, &n.Params); err != nil {
				return fmt.Errorf("node %q params: %w", n.ID, err)
			}
			wf.Nodes = append(wf.Nodes, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// ListWorkflows returns live workflows, most recently modified first. An
// empty owner lists every owner's workflows.
func (r *PgStorage) ListWorkflows(ctx context.Context, owner string) ([]Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.DB.Query(ctx, `
        SELECT w.id, w.owner, w.name, w.modified_at, COUNT(n.node_id)
        FROM workflows w
        LEFT JOIN workflow_nodes n ON n.workflow_id = w.id
        WHERE w.deleted_at IS NULL AND ($1 = '' OR w.owner = $1)
        GROUP BY w.id
        ORDER BY w.modified_at DESC, w.id`,
		owner)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	list := []Summary{}
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Owner, &s.Name, &s.ModifiedAt, &s.NodeCount); err != nil {
			return nil, fmt.Errorf("scan workflow summary: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	return list, nil
}

// UpsertWorkflow saves the header and replaces the node list. Saving a
// soft-deleted id restores it.
func (r *PgStorage) UpsertWorkflow(ctx context.Context, wf *Workflow) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.ModifiedAt = now

	return r.inTx(ctx, writeTx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO workflows (id, owner, name, created_at, modified_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (id) DO UPDATE
            SET owner = EXCLUDED.owner,
                name = EXCLUDED.name,
                modified_at = EXCLUDED.modified_at,
                deleted_at = NULL`,
			wf.ID, wf.Owner, wf.Name, wf.CreatedAt, wf.ModifiedAt); err != nil {
			return fmt.Errorf("upsert workflow header: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, wf.ID); err != nil {
			return fmt.Errorf("delete workflow nodes: %w", err)
		}

		for i, n := range wf.Nodes {
			inputs, err := encodeJSONB(n.Inputs)
			if err != nil {
				return fmt.Errorf("node %q inputs: %w", n.ID, err)
			}
			params, err := encodeJSONB(n.Params)
			if err != nil {
				return fmt.Errorf("node %q params: %w", n.ID, err)
			}
			if _, err := tx.Exec(ctx, `
                INSERT INTO workflow_nodes (workflow_id, node_id, ordinal, op, inputs, params, x_pos, y_pos)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				wf.ID, n.ID, i, string(n.Kind), inputs, params, n.Position.X, n.Position.Y); err != nil {
				return fmt.Errorf("insert workflow node %q: %w", n.ID, err)
			}
		}
		return nil
	})
}

// DeleteWorkflow removes the node list and soft-deletes the header.
func (r *PgStorage) DeleteWorkflow(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.inTx(ctx, writeTx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM workflow_nodes WHERE workflow_id = $1`, id); err != nil {
			return fmt.Errorf("delete workflow nodes: %w", err)
		}
		tag, err := tx.Exec(ctx, `
            UPDATE workflows SET deleted_at = $1
            WHERE id = $2 AND deleted_at IS NULL`,
			time.Now().UTC(), id)
		if err != nil {
			return fmt.Errorf("soft delete workflow: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

func encodeJSONB(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte("{}"), nil
	}
	return b, nil
}

func decodeJSONB[T any](raw json.RawMessage, dst *T) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
