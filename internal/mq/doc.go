// Package mq публикует события выполнения flow в RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — Publisher (orchestrator.EventSink)
//   - consumer.go   — потребление событий (pdflow watch, отчёты)
//
// Типы сообщений:
//   - node.completed — узел получил финальный статус (routing: node.<STATUS>)
//   - run.completed  — job завершён (routing: run.<STATUS>)
//
// Exchanges:
//   - pdflow.events  — topic exchange событий
//   - pdflow.dlq     — dead letter queue
package mq
