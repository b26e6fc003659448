package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/pdflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeNodeCompleted MessageType = "node.completed"
	MessageTypeRunCompleted  MessageType = "run.completed"
)

// Publisher публикует события выполнения в RabbitMQ.
// Реализует orchestrator.EventSink.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// NodeCompletedPayload — узел получил финальный статус.
type NodeCompletedPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	JobID      string    `json:"job_id"`
	Step       string    `json:"step"`
	Index      string    `json:"index"`
	Tool       string    `json:"tool"`
	Status     string    `json:"status"` // SUCCESS или ERROR
	Selected   string    `json:"selected,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// RunCompletedPayload — job завершён.
type RunCompletedPayload struct {
	RunID      uuid.UUID `json:"run_id"`
	JobID      string    `json:"job_id"`
	Flow       string    `json:"flow"`
	Status     string    `json:"status"` // SUCCEEDED или FAILED
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// NewNodeCompletedPayload строит payload из записи узла.
func NewNodeCompletedPayload(job string, nr *domain.NodeRun) NodeCompletedPayload {
	p := NodeCompletedPayload{
		RunID:      nr.RunID,
		JobID:      job,
		Step:       nr.Node.Step,
		Index:      nr.Node.Index,
		Tool:       nr.Tool,
		Status:     string(nr.Status),
		Error:      nr.Error,
		DurationMs: nr.Duration().Milliseconds(),
	}
	if nr.Selected != nil {
		p.Selected = nr.Selected.String()
	}
	return p
}

// NewRunCompletedPayload строит payload из run.
func NewRunCompletedPayload(run *domain.Run) RunCompletedPayload {
	return RunCompletedPayload{
		RunID:      run.ID,
		JobID:      run.JobID,
		Flow:       run.Flow,
		Status:     string(run.Status),
		Error:      run.Error,
		DurationMs: run.Duration().Milliseconds(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// NodeCompleted публикует финальный статус узла.
// Routing key: node.<STATUS>.
func (p *Publisher) NodeCompleted(ctx context.Context, job string, nr *domain.NodeRun) error {
	msg := newMessage(MessageTypeNodeCompleted, NewNodeCompletedPayload(job, nr))
	return p.Publish(ctx, ExchangeEvents, RoutingKey(RoutingKeyNodePrefix+string(nr.Status)), msg)
}

// RunCompleted публикует итог job.
// Routing key: run.<STATUS>.
func (p *Publisher) RunCompleted(ctx context.Context, run *domain.Run) error {
	msg := newMessage(MessageTypeRunCompleted, NewRunCompletedPayload(run))
	return p.Publish(ctx, ExchangeEvents, RoutingKey(RoutingKeyRunPrefix+string(run.Status)), msg)
}

func newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
