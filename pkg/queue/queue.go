// Package queue consumes duplicate-candidate alerts published by the external
// similarity detector. The engine never computes similarity itself; it only
// drains the broker queue and hands payloads to the resolver service.
package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/noah-isme/lead-lifecycle-api/pkg/config"
)

const routingKey = "k.duplicate-alert"

// Broker wraps an AMQP connection and channel with declared topology.
type Broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	cfg  config.AMQPConfig
}

// NewBroker dials the broker and declares the alert exchange and queue.
func NewBroker(cfg config.AMQPConfig) (*Broker, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.QueueBind(cfg.Queue, routingKey, cfg.Exchange, false, nil); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Broker{conn: conn, ch: ch, cfg: cfg}, nil
}

// Close tears down the channel and connection.
func (b *Broker) Close() {
	if b == nil {
		return
	}
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
}

// Handler processes one alert payload. A returned error nacks the delivery
// without requeue so a malformed or unprocessable message cannot wedge the queue.
type Handler func(ctx context.Context, body []byte) error

// Consume drains the alert queue until the context is cancelled.
func (b *Broker) Consume(ctx context.Context, handler Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	deliveries, err := b.ch.Consume(b.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	logger.Info("alert consumer started", zap.String("queue", b.cfg.Queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			if err := handler(ctx, d.Body); err != nil {
				logger.Warn("alert rejected", zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
