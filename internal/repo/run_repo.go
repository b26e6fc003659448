package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/pdflow/internal/domain"
)

// runColumns — порядок колонок, который ожидает scanRun.
const runColumns = `id, job_id, flow, status, steplist, started_at, finished_at, error, created_at`

// RunRepo хранит записи job (таблица runs).
type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create вставляет run. Повторный ID даёт ErrAlreadyExists.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO runs (id, job_id, flow, status, steplist, started_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.JobID, run.Flow, run.Status, run.Steplist, run.StartedAt, run.CreatedAt,
	)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("insert run %s: %w", run.ID, ErrAlreadyExists)
	case err != nil:
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// Update записывает статус, времена и ошибку run.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE runs SET status = $2, started_at = $3, finished_at = $4, error = $5 WHERE id = $1`,
		run.ID, run.Status, run.StartedAt, run.FinishedAt, nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

// GetByID возвращает run или ErrNotFound.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// RunFilter — отбор runs для List. Пустые поля не фильтруют.
type RunFilter struct {
	Flow   string
	JobID  string
	Status domain.RunStatus
	Limit  int
	Offset int
}

// List возвращает runs от новых к старым. Limit по умолчанию 50.
func (r *RunRepo) List(ctx context.Context, f RunFilter) ([]domain.Run, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs
		 WHERE ($1::text IS NULL OR flow = $1)
		   AND ($2::text IS NULL OR job_id = $2)
		   AND ($3::text IS NULL OR status = $3)
		 ORDER BY created_at DESC
		 LIMIT $4 OFFSET $5`,
		nullString(f.Flow), nullString(f.JobID), nullString(string(f.Status)), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Run, error) {
		run, err := scanRun(row)
		if err != nil {
			return domain.Run{}, err
		}
		return *run, nil
	})
}

// scanRun читает строку в порядке runColumns. pgx.ErrNoRows возвращается
// без обёртки.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run    domain.Run
		errMsg *string
	)
	err := row.Scan(&run.ID, &run.JobID, &run.Flow, &run.Status, &run.Steplist,
		&run.StartedAt, &run.FinishedAt, &errMsg, &run.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if errMsg != nil {
		run.Error = *errMsg
	}
	return &run, nil
}

// isUniqueViolation сообщает, что err — нарушение уникального ключа (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// nullString превращает "" в NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullInt превращает 0 в NULL.
func nullInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}
