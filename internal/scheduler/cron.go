package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/pdflow/internal/domain"
)

// specParser разбирает пятипольные выражения и дескрипторы
// (@daily, @hourly, @every 90m).
var specParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Trigger возвращает cron.Schedule расписания: выражение CronExpr
// в его Timezone (по умолчанию UTC) или постоянный интервал IntervalSec.
func Trigger(sched *domain.Schedule) (cron.Schedule, error) {
	switch {
	case sched.IsCron():
		spec, err := specParser.Parse(sched.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", sched.CronExpr, err)
		}
		// Парсер по умолчанию считает в time.Local, расписания считаются в UTC.
		loc := time.UTC
		if sched.Timezone != "" {
			if loc, err = time.LoadLocation(sched.Timezone); err != nil {
				return nil, fmt.Errorf("load timezone %q: %w", sched.Timezone, err)
			}
		}
		// Дескриптор @every даёт ConstantDelaySchedule, пояс ему не нужен.
		if s, ok := spec.(*cron.SpecSchedule); ok {
			s.Location = loc
		}
		return spec, nil

	case sched.IsInterval():
		return cron.Every(time.Duration(sched.IntervalSec) * time.Second), nil

	default:
		return nil, ErrNoTrigger
	}
}

// CalculateNextDue возвращает первое срабатывание sched после from (в UTC).
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	trigger, err := Trigger(sched)
	if err != nil {
		return time.Time{}, err
	}
	return trigger.Next(from).UTC(), nil
}

// ValidateCronExpr проверяет выражение без привязки к расписанию.
func ValidateCronExpr(expr string) error {
	if _, err := specParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
