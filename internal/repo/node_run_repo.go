package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/pdflow/internal/domain"
)

// NodeRunRepo — репозиторий для записей выполнения узлов.
type NodeRunRepo struct {
	pool *pgxpool.Pool
}

// NewNodeRunRepo создаёт новый NodeRunRepo.
func NewNodeRunRepo(pool *pgxpool.Pool) *NodeRunRepo {
	return &NodeRunRepo{pool: pool}
}

// Upsert записывает текущее состояние узла.
// Узел одного run имеет одну запись: каждая смена статуса её обновляет.
func (r *NodeRunRepo) Upsert(ctx context.Context, nr *domain.NodeRun) error {
	var selected *string
	if nr.Selected != nil {
		s := nr.Selected.String()
		selected = &s
	}

	query := `
		INSERT INTO node_runs (run_id, job_id, step, idx, tool, status, threads,
		                       selected, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, step, idx) DO UPDATE
		SET status = EXCLUDED.status,
		    threads = EXCLUDED.threads,
		    selected = EXCLUDED.selected,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at,
		    error = EXCLUDED.error
	`
	_, err := r.pool.Exec(ctx, query,
		nr.RunID,
		nr.JobID,
		nr.Node.Step,
		nr.Node.Index,
		nr.Tool,
		nr.Status,
		nr.Threads,
		selected,
		nr.StartedAt,
		nr.FinishedAt,
		nullString(nr.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert node run %s: %w", nr.Node, err)
	}
	return nil
}

// ListByRunID возвращает узлы run.
func (r *NodeRunRepo) ListByRunID(ctx context.Context, runID uuid.UUID) ([]domain.NodeRun, error) {
	query := `
		SELECT run_id, job_id, step, idx, tool, status, threads, selected,
		       started_at, finished_at, error
		FROM node_runs
		WHERE run_id = $1
		ORDER BY started_at ASC NULLS LAST, step, idx
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list node runs: %w", err)
	}
	defer rows.Close()

	var out []domain.NodeRun
	for rows.Next() {
		nr, err := scanNodeRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *nr)
	}
	return out, rows.Err()
}

func scanNodeRun(row pgx.Row) (*domain.NodeRun, error) {
	var nr domain.NodeRun
	var selected, nodeError *string

	err := row.Scan(
		&nr.RunID,
		&nr.JobID,
		&nr.Node.Step,
		&nr.Node.Index,
		&nr.Tool,
		&nr.Status,
		&nr.Threads,
		&selected,
		&nr.StartedAt,
		&nr.FinishedAt,
		&nodeError,
	)
	if err != nil {
		return nil, fmt.Errorf("scan node run: %w", err)
	}

	if selected != nil {
		id, err := domain.ParseNodeID(*selected)
		if err != nil {
			return nil, fmt.Errorf("parse selected node: %w", err)
		}
		nr.Selected = &id
	}
	if nodeError != nil {
		nr.Error = *nodeError
	}
	return &nr, nil
}
