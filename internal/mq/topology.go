package mq

import (
	"context"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange, Queue, RoutingKey — имена объектов брокера.
type (
	Exchange   string
	Queue      string
	RoutingKey string
)

const (
	ExchangeEvents Exchange = "pdflow.events" // topic, все события
	ExchangeDLQ    Exchange = "pdflow.dlq"    // direct, отвергнутые сообщения

	QueueRunsCompleted Queue = "runs.completed"
	QueueDLQEvents     Queue = "dlq.events"
)

// Ключ события — "<node|run>.<STATUS>", например "node.ERROR" или "run.FAILED".
const (
	RoutingKeyNodePrefix = "node."
	RoutingKeyRunPrefix  = "run."

	BindAllNodes RoutingKey = "node.*"
	BindAllRuns  RoutingKey = "run.*"
	BindAll      RoutingKey = "#"

	RoutingKeyDLQEvents RoutingKey = "events"
)

// runsCompletedTTL — сколько итог job ждёт потребителя отчётов.
const runsCompletedTTL = 7 * 24 * time.Hour

type exchangeSpec struct {
	name Exchange
	kind string
}

type queueSpec struct {
	name     Queue
	exchange Exchange
	key      RoutingKey
	args     amqp.Table
	consumer string
}

var exchanges = []exchangeSpec{
	{ExchangeEvents, amqp.ExchangeTopic},
	{ExchangeDLQ, amqp.ExchangeDirect},
}

var queues = []queueSpec{
	{
		name:     QueueRunsCompleted,
		exchange: ExchangeEvents,
		key:      BindAllRuns,
		args: amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQEvents),
			"x-message-ttl":             runsCompletedTTL.Milliseconds(),
		},
		consumer: "pdflow watch --reports",
	},
	{
		name:     QueueDLQEvents,
		exchange: ExchangeDLQ,
		key:      RoutingKeyDLQEvents,
		consumer: "manual",
	},
}

// SetupTopology объявляет обменники и durable очереди. Объявление
// идемпотентно, его выполняет каждый процесс при старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}
		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
			if err := ch.QueueBind(string(q.name), string(q.key), string(q.exchange), false, nil); err != nil {
				return fmt.Errorf("bind %s to %s: %w", q.name, q.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo описывает топологию для отладочного лога.
func TopologyInfo() string {
	var b strings.Builder
	for _, ex := range exchanges {
		fmt.Fprintf(&b, "%s (%s)\n", ex.name, ex.kind)
		for _, q := range queues {
			if q.exchange == ex.name {
				fmt.Fprintf(&b, "  %s [%s] consumer: %s\n", q.name, q.key, q.consumer)
			}
		}
		if ex.name == ExchangeEvents {
			fmt.Fprintf(&b, "  <temporary> [%s | %s | %s] consumer: pdflow watch\n", BindAll, BindAllNodes, BindAllRuns)
		}
	}
	return b.String()
}
