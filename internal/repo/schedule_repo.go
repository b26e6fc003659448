package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/pdflow/internal/domain"
)

// ScheduleRepo — репозиторий расписаний.
//
// Определения расписаний приходят из файла конфигурации сервера;
// в БД дополнительно хранится состояние (next_due_at, last_run_at,
// last_job_id), чтобы перезапуск сервера не повторял запуски.
type ScheduleRepo struct {
	pool *pgxpool.Pool
}

// NewScheduleRepo создаёт новый ScheduleRepo.
func NewScheduleRepo(pool *pgxpool.Pool) *ScheduleRepo {
	return &ScheduleRepo{pool: pool}
}

// Sync записывает определения расписаний, сохраняя их состояние.
// Для новых расписаний next_due_at берётся из определения. Расписания,
// которых больше нет в файле, отключаются, но их история остаётся.
func (r *ScheduleRepo) Sync(ctx context.Context, schedules []domain.Schedule) error {
	query := `
		INSERT INTO schedules (name, flow_file, manifest, cron_expr, timezone, interval_sec,
		                       steplist, relax, enabled, next_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (name) DO UPDATE
		SET flow_file = EXCLUDED.flow_file,
		    manifest = EXCLUDED.manifest,
		    cron_expr = EXCLUDED.cron_expr,
		    timezone = EXCLUDED.timezone,
		    interval_sec = EXCLUDED.interval_sec,
		    steplist = EXCLUDED.steplist,
		    relax = EXCLUDED.relax,
		    enabled = EXCLUDED.enabled,
		    next_due_at = COALESCE(schedules.next_due_at, EXCLUDED.next_due_at)
	`

	batch := &pgx.Batch{}
	for i := range schedules {
		s := &schedules[i]
		batch.Queue(query,
			s.Name,
			s.FlowFile,
			s.Manifest,
			nullString(s.CronExpr),
			nullString(s.Timezone),
			nullInt(s.IntervalSec),
			s.Steplist,
			s.Relax,
			s.Enabled,
			s.NextDueAt,
		)
	}

	names := make([]string, len(schedules))
	for i := range schedules {
		names[i] = schedules[i].Name
	}
	batch.Queue(`UPDATE schedules SET enabled = false WHERE NOT (name = ANY($1))`, names)

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, name := range names {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("sync schedule %s: %w", name, err)
		}
	}
	if _, err := results.Exec(); err != nil {
		return fmt.Errorf("disable removed schedules: %w", err)
	}
	return nil
}

// scheduleColumns — порядок колонок, который ожидает scanSchedule.
const scheduleColumns = `name, flow_file, manifest, cron_expr, timezone, interval_sec, steplist,
	relax, enabled, next_due_at, last_run_at, last_job_id`

// GetByName возвращает расписание или ErrNotFound.
func (r *ScheduleRepo) GetByName(ctx context.Context, name string) (*domain.Schedule, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE name = $1`, name)
	s, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List возвращает все расписания, включая отключённые, по имени.
func (r *ScheduleRepo) List(ctx context.Context) ([]domain.Schedule, error) {
	return r.query(ctx, "list schedules",
		`SELECT `+scheduleColumns+` FROM schedules ORDER BY name`)
}

// ListDue возвращает включённые расписания с next_due_at <= now,
// самые просроченные первыми.
func (r *ScheduleRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error) {
	return r.query(ctx, "list due schedules",
		`SELECT `+scheduleColumns+` FROM schedules
		 WHERE enabled AND next_due_at IS NOT NULL AND next_due_at <= $1
		 ORDER BY next_due_at
		 LIMIT $2`,
		now, limit)
}

func (r *ScheduleRepo) query(ctx context.Context, op, sql string, args ...any) ([]domain.Schedule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Schedule, error) {
		s, err := scanSchedule(row)
		if err != nil {
			return domain.Schedule{}, err
		}
		return *s, nil
	})
}

// Update записывает состояние расписания после запуска.
func (r *ScheduleRepo) Update(ctx context.Context, s *domain.Schedule) error {
	query := `
		UPDATE schedules
		SET next_due_at = $2, last_run_at = $3, last_job_id = $4
		WHERE name = $1
	`
	tag, err := r.pool.Exec(ctx, query, s.Name, s.NextDueAt, s.LastRunAt, nullString(s.LastJobID))
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", s.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update schedule %s: %w", s.Name, ErrNotFound)
	}
	return nil
}

func scanSchedule(row pgx.Row) (*domain.Schedule, error) {
	var (
		s                             domain.Schedule
		cronExpr, timezone, lastJobID *string
		intervalSec                   *int
	)
	err := row.Scan(&s.Name, &s.FlowFile, &s.Manifest, &cronExpr, &timezone, &intervalSec,
		&s.Steplist, &s.Relax, &s.Enabled, &s.NextDueAt, &s.LastRunAt, &lastJobID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("scan schedule: %w", err)
	}

	if cronExpr != nil {
		s.CronExpr = *cronExpr
	}
	if timezone != nil {
		s.Timezone = *timezone
	}
	if intervalSec != nil {
		s.IntervalSec = *intervalSec
	}
	if lastJobID != nil {
		s.LastJobID = *lastJobID
	}
	return &s, nil
}
