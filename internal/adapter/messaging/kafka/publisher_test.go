package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shipa-backend/config"
	"shipa-backend/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs     []kafkago.Message
	err      error
	deadline bool
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, w.deadline = ctx.Deadline()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testEvent() domain.OrderEvent {
	o := &domain.Order{
		ID: uuid.New(), OrderNumber: "ORD-1", CustomerID: uuid.New(), ShopID: uuid.New(),
		Status: domain.OrderStatusPending, PaymentStatus: domain.PaymentStatusPaid,
		Total: decimal.RequireFromString("119.50"),
	}
	return domain.NewOrderEvent(domain.OrderEventPlaced, o, time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC))
}

func TestPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, config.KafkaConfig{WriteTimeout: time.Second}, zerolog.Nop())
	evt := testEvent()

	require.NoError(t, p.Publish(context.Background(), evt))
	require.Len(t, w.msgs, 1)
	assert.True(t, w.deadline)

	msg := w.msgs[0]
	assert.Equal(t, evt.OrderID.String(), string(msg.Key))
	assert.Equal(t, evt.OccurredAt, msg.Time)
	assert.Equal(t, "order.placed", string(msg.Headers[0].Value))

	var decoded domain.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ORD-1", decoded.OrderNumber)
	assert.True(t, decoded.Total.Equal(evt.Total))
}

func TestPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := NewPublisher(w, config.KafkaConfig{}, zerolog.Nop())

	err := p.Publish(context.Background(), testEvent())
	assert.ErrorContains(t, err, "publish order.placed")
	assert.False(t, w.deadline)
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewPublisher(w, config.KafkaConfig{}, zerolog.Nop()).Close())
	assert.True(t, w.closed)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter(config.KafkaConfig{Brokers: []string{"kafka:9092"}, OrderTopic: "shipa.orders"})
	assert.Equal(t, "shipa.orders", w.Topic)
	assert.Equal(t, "kafka:9092", w.Addr.String())
}

func TestNoopPublisher(t *testing.T) {
	assert.NoError(t, NoopPublisher{}.Publish(context.Background(), testEvent()))
}
