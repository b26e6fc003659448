package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// errDeliveriesClosed — брокер закрыл канал доставки.
var errDeliveriesClosed = errors.New("deliveries channel closed")

// Handler обрабатывает одно событие. Ошибка приводит к nack.
type Handler func(ctx context.Context, msg *Message) error

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Queue — durable очередь из топологии (QueueRunsCompleted).
	// Пусто — временная exclusive очередь на Exchange с Bindings,
	// которая исчезает вместе с соединением.
	Queue string

	Exchange Exchange
	Bindings []RoutingKey

	Handler Handler

	// Prefetch — сколько неподтверждённых сообщений держит брокер
	// на consumer (по умолчанию 1).
	Prefetch int

	// Requeue — возвращать сообщение в очередь при ошибке Handler.
	// Без него сообщение уходит в DLX очереди, если он настроен.
	Requeue bool
}

// Consumer читает события из очереди и переподписывается после
// восстановления соединения.
type Consumer struct {
	conn   *Connection
	cfg    ConsumerConfig
	logger *slog.Logger
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if len(cfg.Bindings) == 0 {
		cfg.Bindings = []RoutingKey{BindAll}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, cfg: cfg, logger: logger}
}

// Start потребляет сообщения до отмены ctx и возвращает ctx.Err().
func (c *Consumer) Start(ctx context.Context) error {
	for {
		deliveries, queue, err := c.subscribe()
		if err != nil {
			c.logger.Error("subscribe failed", "queue", c.cfg.Queue, "error", err)
		} else {
			c.logger.Info("consumer started", "queue", queue)
			err = c.drain(ctx, queue, deliveries)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("consumer interrupted", "queue", queue, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// subscribe объявляет очередь при необходимости и начинает Consume.
func (c *Consumer) subscribe() (<-chan amqp.Delivery, string, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, "", fmt.Errorf("no channel available")
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return nil, "", fmt.Errorf("set qos: %w", err)
	}

	queue, exclusive := c.cfg.Queue, false
	if queue == "" {
		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return nil, "", fmt.Errorf("declare temporary queue: %w", err)
		}
		for _, key := range c.cfg.Bindings {
			if err := ch.QueueBind(q.Name, string(key), string(c.cfg.Exchange), false, nil); err != nil {
				return nil, "", fmt.Errorf("bind %s to %s: %w", key, c.cfg.Exchange, err)
			}
		}
		queue, exclusive = q.Name, true
	}

	deliveries, err := ch.Consume(queue, "", false, exclusive, false, false, nil)
	if err != nil {
		return nil, "", fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, queue, nil
}

// drain обрабатывает доставки, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, queue string, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.dispatch(ctx, queue, d)
		}
	}
}

// dispatch декодирует сообщение, вызывает Handler и подтверждает доставку.
// Нечитаемое сообщение не возвращается в очередь.
func (c *Consumer) dispatch(ctx context.Context, queue string, d amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		c.logger.Error("malformed message", "queue", queue, "error", err)
		c.settle(d, false, false)
		return
	}

	log := c.logger.With("queue", queue, "message_id", msg.ID, "type", msg.Type)
	log.Debug("message received")

	if err := c.cfg.Handler(ctx, &msg); err != nil {
		log.Error("handler failed", "error", err)
		c.settle(d, false, c.cfg.Requeue)
		return
	}
	c.settle(d, true, false)
}

func (c *Consumer) settle(d amqp.Delivery, ack, requeue bool) {
	var err error
	if ack {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, requeue)
	}
	if err != nil {
		c.logger.Warn("settle delivery", "ack", ack, "error", err)
	}
}

// ParsePayload декодирует Payload сообщения в T. После json.Unmarshal
// в Message payload лежит как map[string]any, поэтому он кодируется
// повторно.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}
