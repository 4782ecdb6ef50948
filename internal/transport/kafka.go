package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/fleet-dispatch/internal/event"
)

// Kafka is the broker transport: inbound events are consumed from one topic
// with the sender identity in the message key, outbound envelopes are
// produced to another topic keyed by recipient.
type Kafka struct {
	reader *kafka.Reader
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafka(brokers []string, inboundTopic, outboundTopic, group string, logger *slog.Logger) *Kafka {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   inboundTopic,
		GroupID: group,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: outboundTopic, Balancer: &kafka.LeastBytes{}})
	return &Kafka{reader: r, writer: w, logger: logger}
}

// Run consumes inbound messages until ctx ends, backing off exponentially on
// read errors. Messages without a key have no sender identity and are
// dropped.
func (k *Kafka) Run(ctx context.Context, h Handler) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				k.logger.Info("kafka transport shutting down")
				return
			}
			k.logger.Warn("kafka read error", "error", err, "backoff", backoff.String())
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		sender := string(m.Key)
		if sender == "" {
			k.logger.Debug("dropping message without sender key", "offset", m.Offset)
			continue
		}
		h(ctx, sender, m.Value)
	}
}

func (k *Kafka) Send(ctx context.Context, recipientID string, env event.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(recipientID), Value: b})
}

func (k *Kafka) Close() error {
	rerr := k.reader.Close()
	werr := k.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
