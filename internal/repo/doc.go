// Package repo хранит историю выполнения и состояние расписаний в Postgres.
//
//   - HistoryRepo (RunRepo + NodeRunRepo) — runs и node_runs,
//     реализует orchestrator.Recorder
//   - ScheduleRepo — состояние расписаний регрессионных запусков
//   - Leader — выбор единственного экземпляра, запускающего расписания
//
// Manifest остаётся источником истины для результатов узлов;
// Postgres хранит историю для API и отчётов.
package repo
