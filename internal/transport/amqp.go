package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/fleet-dispatch/internal/event"
)

const (
	amqpInboundQueue = "dispatch.inbound"
	amqpQueuePrefix  = "dispatch.peer."
)

// AMQP is an alternative broker transport. Inbound events are consumed from a
// shared engine queue with the sender identity in the ReplyTo property;
// outbound envelopes go to one durable queue per recipient.
type AMQP struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *slog.Logger
}

func NewAMQP(url string, logger *slog.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(amqpInboundQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare inbound queue: %w", err)
	}
	return &AMQP{conn: conn, ch: ch, logger: logger}, nil
}

// Run consumes the engine queue until ctx ends. Deliveries without a ReplyTo
// carry no sender identity and are dropped.
func (a *AMQP) Run(ctx context.Context, h Handler) {
	deliveries, err := a.ch.Consume(amqpInboundQueue, "", true, false, false, false, nil)
	if err != nil {
		a.logger.Error("amqp consume failed", "error", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("amqp transport shutting down")
			return
		case d, ok := <-deliveries:
			if !ok {
				a.logger.Warn("amqp delivery channel closed")
				return
			}
			if d.ReplyTo == "" {
				a.logger.Debug("dropping delivery without reply-to")
				continue
			}
			h(ctx, d.ReplyTo, d.Body)
		}
	}
}

func (a *AMQP) Send(ctx context.Context, recipientID string, env event.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	queue := amqpQueuePrefix + recipientID
	if _, err := a.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   env.ID,
		Timestamp:   time.Now(),
		Body:        b,
	})
}

func (a *AMQP) Close() error {
	if err := a.ch.Close(); err != nil {
		_ = a.conn.Close()
		return err
	}
	return a.conn.Close()
}
