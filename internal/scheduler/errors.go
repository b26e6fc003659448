package scheduler

import "errors"

var (
	// ErrNoTrigger — у расписания нет ни cron_expr, ни interval_sec.
	ErrNoTrigger = errors.New("schedule has neither cron_expr nor interval_sec")

	// ErrInvalidSchedules — файл расписаний некорректен.
	ErrInvalidSchedules = errors.New("invalid schedules file")

	// ErrScheduleNotFound — расписания с таким именем нет.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrDuplicateSchedule — два расписания с одним именем.
	ErrDuplicateSchedule = errors.New("duplicate schedule name")
)
