// Package kafka publishes order lifecycle events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafkago.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher implements ports.EventPublisher. Events are keyed by order id so
// one order's events land on one partition in order.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	log     zerolog.Logger
}

// NewWriter builds a hash-balanced writer for the order topic.
func NewWriter(cfg config.KafkaConfig) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.OrderTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
}

func NewPublisher(writer MessageWriter, cfg config.KafkaConfig, log zerolog.Logger) *Publisher {
	return &Publisher{
		writer:  writer,
		timeout: cfg.WriteTimeout,
		log:     log,
	}
}

func (p *Publisher) Publish(ctx context.Context, event domain.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	msg := kafkago.Message{
		Key:   []byte(event.OrderID.String()),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.Debug().
		Str("event", string(event.Type)).
		Str("order_number", event.OrderNumber).
		Msg("order event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events. It is used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }

func (NoopPublisher) Close() error { return nil }
