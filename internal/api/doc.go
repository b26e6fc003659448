// Package api содержит HTTP API сервера pdflow (только чтение).
//
// Структура:
//   - handler.go          — Handler с DI (manifest, история, расписания, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (request id, logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (response)
//   - job_handler.go      — обработчики для /jobs (история manifest)
//   - run_handler.go      — обработчики для /runs (история в Postgres)
//   - schedule_handler.go — обработчики для /schedules
package api
