package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/pdflow/internal/domain"
)

// HistoryRepo — история выполнения в Postgres.
// Реализует orchestrator.Recorder.
type HistoryRepo struct {
	Runs     *RunRepo
	NodeRuns *NodeRunRepo
}

// NewHistoryRepo создаёт новый HistoryRepo.
func NewHistoryRepo(pool *pgxpool.Pool) *HistoryRepo {
	return &HistoryRepo{
		Runs:     NewRunRepo(pool),
		NodeRuns: NewNodeRunRepo(pool),
	}
}

// SaveRun записывает новый run.
func (h *HistoryRepo) SaveRun(ctx context.Context, run *domain.Run) error {
	return h.Runs.Create(ctx, run)
}

// UpdateRun обновляет итог run.
func (h *HistoryRepo) UpdateRun(ctx context.Context, run *domain.Run) error {
	return h.Runs.Update(ctx, run)
}

// SaveNodeRun записывает смену статуса узла.
func (h *HistoryRepo) SaveNodeRun(ctx context.Context, nr *domain.NodeRun) error {
	return h.NodeRuns.Upsert(ctx, nr)
}
