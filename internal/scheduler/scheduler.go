package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/pdflow/internal/domain"
)

// Runner запускает flow расписания. Возвращает имя созданного job;
// job может быть назван и при ошибке (например, RunFatalError).
type Runner interface {
	RunSchedule(ctx context.Context, s *domain.Schedule) (string, error)
}

// Scheduler — планировщик регрессионных запусков.
type Scheduler struct {
	store     Store
	runner    Runner
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Store     Store
	Runner    Runner
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		store:     cfg.Store,
		runner:    cfg.Runner,
		logger:    logger,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled, next_due_at <= now)
// 2. Для каждого запускает flow (новый job в manifest расписания)
// 3. Обновляет next_due_at, last_run_at, last_job_id
//
// Запуски выполняются последовательно. Ошибки одного schedule не
// блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now()

	schedules, err := s.store.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, failed int
	for i := range schedules {
		if ctx.Err() != nil {
			break
		}
		sched := &schedules[i]

		ok, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule", sched.Name,
				"error", err,
			)
			continue
		}

		processed++
		if !ok {
			failed++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"runs_failed", failed,
	)

	return ctx.Err()
}

// processSchedule выполняет одно расписание.
// Возвращает true, если job завершился успешно.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	s.logger.Info("running scheduled flow",
		"schedule", sched.Name,
		"flow_file", sched.FlowFile,
		"manifest", sched.Manifest,
	)

	job, runErr := s.runner.RunSchedule(ctx, sched)
	if runErr != nil {
		s.logger.Warn("scheduled run failed",
			"schedule", sched.Name,
			"job", job,
			"error", runErr,
		)
	}

	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		return false, fmt.Errorf("calculate next due: %w", err)
	}

	sched.RecordRun(job, nextDue)
	if err := s.store.Update(ctx, sched); err != nil {
		return false, fmt.Errorf("update schedule: %w", err)
	}

	return runErr == nil, nil
}
