// Package cli реализует инструмент командной строки pdflow.
//
// # Обзор
//
// CLI выполняет flow локально и читает историю jobs из manifest.
// Команды jobs, history и schedule обращаются к API сервера pdflow
// по HTTP и не импортируют internal/api.
//
// # Ключевые компоненты
//
// ## Toolchain
//
// Окружение запуска инструментов: локальные процессы или Docker,
// ограничения параллельности, получатели истории и событий.
// Тот же Toolchain использует сервер расписаний.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.Encoder) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: pdflow summary build/manifest.json --json | jq .
//
// ## Commands
//
//   - run FLOW_FILE        — выполнить flow (--steplist, --job, --relax, --quiet)
//   - summary MANIFEST     — сводка по job
//   - result MANIFEST N K  — путь к артефакту узла
//   - watch                — события из RabbitMQ
//   - version              — версия pdflow и инструментов flow
//   - jobs, history, schedule — чтение через API сервера
package cli
