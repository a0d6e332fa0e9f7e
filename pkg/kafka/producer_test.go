package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
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

type orderPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func headerMap(msg kafka.Message) map[string]string {
	out := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent("order.created", "ord-1", "order", "order-service", orderPayload{OrderID: "ord-1", Status: "CONFIRMED"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "order.created", event.EventType)
	assert.Equal(t, "ord-1", event.AggregateID)
	assert.Equal(t, "order", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)
	assert.JSONEq(t, `{"orderId":"ord-1","status":"CONFIRMED"}`, string(event.Data))

	var got orderPayload
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, "CONFIRMED", got.Status)
}

func TestNewEvent_UnmarshalablePayload(t *testing.T) {
	_, err := NewEvent("order.created", "ord-1", "order", "order-service", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order.created")
}

func TestEvent_Builders(t *testing.T) {
	event := &Event{EventID: "e-1"}

	same := event.WithCorrelationID("corr-1").WithMetadata("previous_status", "PENDING")

	assert.Same(t, event, same)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, "PENDING", event.Metadata["previous_status"])
}

func TestEvent_WithMetadataSkipsEmptyValues(t *testing.T) {
	event := &Event{EventID: "e-2"}

	event.WithMetadata("previous_status", "")
	assert.Nil(t, event.Metadata)

	event.WithMetadata("status", "CANCELLED")
	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"metadata":{"status":"CANCELLED"}`)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "ecommerce.order.created", Topic("order", "created"))
	assert.Equal(t, "ecommerce.order.status_changed", Topic("order", "status_changed"))
}

func TestHeaderCarrier(t *testing.T) {
	headers := []kafka.Header{{Key: "source", Value: []byte("order-service")}}
	c := NewHeaderCarrier(&headers)

	assert.Equal(t, "order-service", c.Get("source"))
	assert.Empty(t, c.Get("missing"))

	c.Set("source", "other")
	c.Set("traceparent", "00-abc")

	assert.Equal(t, "other", c.Get("source"))
	assert.ElementsMatch(t, []string{"source", "traceparent"}, c.Keys())
	assert.Len(t, headers, 2)
}

func TestMessage_HeadersAndTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	event, err := NewEvent("order.created", "ord-1", "order", "order-service", orderPayload{OrderID: "ord-1"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	msg, err := Message(ctx, "ecommerce.order.created", event)
	require.NoError(t, err)

	assert.Equal(t, "ecommerce.order.created", msg.Topic)
	assert.Equal(t, []byte("ord-1"), msg.Key)
	h := headerMap(msg)
	assert.Equal(t, "order.created", h["event_type"])
	assert.Equal(t, "order-service", h["source"])
	assert.Equal(t, "corr-1", h["correlation_id"])
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", h["traceparent"])

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &envelope))
	assert.Equal(t, event.EventID, envelope["event_id"])
}

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, slog.Default())
	topic := "ecommerce.order.test_publish"

	event, err := NewEvent("order.created", "ord-1", "order", "order-service", orderPayload{OrderID: "ord-1"})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), topic, event))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, topic, w.msgs[0].Topic)
	assert.Equal(t, float64(1), testutil.ToFloat64(producerMessagesPublished.WithLabelValues(topic)))
}

func TestProducer_PublishError(t *testing.T) {
	var logs bytes.Buffer
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, slog.New(slog.NewJSONHandler(&logs, nil)))
	topic := "ecommerce.order.test_publish_error"

	event, err := NewEvent("order.created", "ord-2", "order", "order-service", orderPayload{OrderID: "ord-2"})
	require.NoError(t, err)

	err = p.Publish(context.Background(), topic, event)

	require.Error(t, err)
	assert.Contains(t, err.Error(), topic)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Equal(t, float64(1), testutil.ToFloat64(producerPublishErrors.WithLabelValues(topic)))
	assert.Contains(t, logs.String(), "failed to publish event")
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newProducer(w, nil, slog.Default()).Close())
	assert.True(t, w.closed)
}

func TestNewProducer_DoesNotConnect(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestPingBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err = PingBrokers(ctx, []string{"127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all brokers unreachable")
}
