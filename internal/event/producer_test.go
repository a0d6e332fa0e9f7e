package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/order-service/internal/domain"
	pkgkafka "github.com/utafrali/order-service/pkg/kafka"
	"github.com/utafrali/order-service/pkg/logger"
)

type published struct {
	topic string
	event *pkgkafka.Event
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, event *pkgkafka.Event) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{topic: topic, event: event})
	return nil
}

func newTestProducer() (*Producer, *fakePublisher) {
	pub := &fakePublisher{}
	return NewProducer(pub, slog.New(slog.NewTextHandler(io.Discard, nil))), pub
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "ecommerce.order.created", TopicOrderCreated)
	assert.Equal(t, "ecommerce.order.status_changed", TopicOrderStatusChanged)
	assert.Equal(t, "ecommerce.order.canceled", TopicOrderCanceled)
}

func TestPublishOrderCreated(t *testing.T) {
	p, pub := newTestProducer()
	ctx := logger.WithCorrelationID(context.Background(), "corr-9")
	order := &domain.Order{
		ID:         "order-1",
		MemberID:   1,
		ProductID:  101,
		Quantity:   2,
		TotalPrice: decimal.NewFromInt(100),
		Status:     domain.OrderStatusConfirmed,
	}

	require.NoError(t, p.PublishOrderCreated(ctx, order))
	require.Len(t, pub.sent, 1)

	msg := pub.sent[0]
	assert.Equal(t, TopicOrderCreated, msg.topic)
	assert.Equal(t, TopicOrderCreated, msg.event.EventType)
	assert.Equal(t, "order-1", msg.event.AggregateID)
	assert.Equal(t, AggregateTypeOrder, msg.event.AggregateType)
	assert.Equal(t, SourceOrderService, msg.event.Source)
	assert.Equal(t, "corr-9", msg.event.CorrelationID)

	var data OrderCreatedData
	require.NoError(t, json.Unmarshal(msg.event.Data, &data))
	assert.Equal(t, int64(101), data.ProductID)
	assert.Equal(t, 2, data.Quantity)
	assert.Equal(t, "CONFIRMED", data.Status)
	assert.True(t, decimal.NewFromInt(100).Equal(data.TotalPrice))
	assert.Equal(t, map[string]string{MetadataStatus: "CONFIRMED"}, msg.event.Metadata)
}

func TestPublishOrderStatusChanged(t *testing.T) {
	p, pub := newTestProducer()

	require.NoError(t, p.PublishOrderStatusChanged(context.Background(), "order-1",
		domain.OrderStatusPending, domain.OrderStatusConfirmed))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicOrderStatusChanged, pub.sent[0].topic)
	assert.Empty(t, pub.sent[0].event.CorrelationID)

	var data OrderStatusChangedData
	require.NoError(t, json.Unmarshal(pub.sent[0].event.Data, &data))
	assert.Equal(t, OrderStatusChangedData{OrderID: "order-1", OldStatus: "PENDING", NewStatus: "CONFIRMED"}, data)
	assert.Equal(t, map[string]string{
		MetadataStatus:         "CONFIRMED",
		MetadataPreviousStatus: "PENDING",
	}, pub.sent[0].event.Metadata)
}

func TestPublishOrderCanceled(t *testing.T) {
	p, pub := newTestProducer()

	require.NoError(t, p.PublishOrderCanceled(context.Background(), "order-1", domain.OrderStatusConfirmed))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, TopicOrderCanceled, pub.sent[0].topic)

	var data OrderCanceledData
	require.NoError(t, json.Unmarshal(pub.sent[0].event.Data, &data))
	assert.Equal(t, "CONFIRMED", data.PreviousStatus)
	assert.Equal(t, "CANCELLED", pub.sent[0].event.Metadata[MetadataStatus])
	assert.Equal(t, "CONFIRMED", pub.sent[0].event.Metadata[MetadataPreviousStatus])
}

func TestPublish_WrapsBrokerError(t *testing.T) {
	p, pub := newTestProducer()
	pub.err = errors.New("leader not available")

	err := p.PublishOrderCanceled(context.Background(), "order-1", domain.OrderStatusPending)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish ecommerce.order.canceled event")
	assert.Contains(t, err.Error(), "leader not available")
}
