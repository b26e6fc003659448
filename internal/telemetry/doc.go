// Package telemetry — логирование и метрики pdflow.
//
//   - logging.go — настройка slog (LOG_LEVEL, LOG_FORMAT), логгер в context
//   - metrics.go — Prometheus метрики узлов и job (orchestrator.Metrics)
//
// pdflow-server отдаёт метрики на /metrics.
package telemetry
