// Package scheduler запускает flow по расписанию (регрессии).
//
// Scheduler периодически проверяет schedules с истекшим next_due_at
// и выполняет flow расписания новым job в его manifest.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, processSchedule)
//   - cron.go      — Trigger: cron-выражение, дескриптор (@daily) или интервал
//   - store.go     — файл расписаний и MemoryStore
//   - runner.go    — FlowRunner: flow-файл → Controller.Execute
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Store:  store,   // MemoryStore или repo.ScheduleRepo
//	    Runner: scheduler.NewFlowRunner(newController),
//	    Logger: logger,
//	})
//
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// С Postgres несколько pdflow-server делят одни расписания, и Tick
// вызывает только держатель advisory lock (repo.Leader).
package scheduler
