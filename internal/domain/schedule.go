package domain

import (
	"time"
)

// Schedule — расписание регрессионного запуска flow.
//
// Каждое срабатывание создаёт новый job в том же manifest:
// история предыдущих запусков сохраняется.
type Schedule struct {
	// Name — имя расписания.
	Name string `json:"name" yaml:"name" validate:"required"`

	// FlowFile — путь к файлу flow.
	FlowFile string `json:"flow_file" yaml:"flow_file" validate:"required"`

	// Manifest — путь к файлу manifest.
	Manifest string `json:"manifest" yaml:"manifest" validate:"required"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 2 * * *"     — каждую ночь в 2:00
	//   "0 0 * * 0"     — каждое воскресенье в полночь
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty" yaml:"cron_expr,omitempty" validate:"omitempty,cronexpr"`

	// Timezone — часовой пояс для CronExpr (по умолчанию UTC).
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty" yaml:"interval_sec,omitempty" validate:"required_without=CronExpr,gte=0"`

	// Steplist — ограничение на выполняемые шаги.
	Steplist []string `json:"steplist,omitempty" yaml:"steplist,omitempty"`

	// Relax — не считать предупреждения адаптеров ошибкой.
	Relax bool `json:"relax,omitempty" yaml:"relax,omitempty"`

	// Enabled — если false, scheduler игнорирует расписание.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty" yaml:"-"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty" yaml:"-"`

	// LastJobID — job последнего запуска.
	LastJobID string `json:"last_job_id,omitempty" yaml:"-"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(jobID string, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastJobID = jobID
	s.NextDueAt = &nextDue
}
