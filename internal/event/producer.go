package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/order-service/internal/domain"
	pkgkafka "github.com/utafrali/order-service/pkg/kafka"
	"github.com/utafrali/order-service/pkg/logger"
)

// Kafka topics for order domain events.
var (
	TopicOrderCreated       = pkgkafka.Topic("order", "created")
	TopicOrderStatusChanged = pkgkafka.Topic("order", "status_changed")
	TopicOrderCanceled      = pkgkafka.Topic("order", "canceled")
)

// AggregateTypeOrder is the aggregate type stamped on every order event.
const AggregateTypeOrder = "order"

// SourceOrderService identifies events originating from this service.
const SourceOrderService = "order-service"

// Metadata keys stamped on order events so consumers can route on status
// without decoding the payload.
const (
	MetadataStatus         = "status"
	MetadataPreviousStatus = "previous_status"
)

// statusMetadata describes the transition an event records.
type statusMetadata struct {
	status   domain.OrderStatus
	previous domain.OrderStatus
}

// OrderCreatedData is the payload for an order.created event (full order snapshot).
type OrderCreatedData struct {
	ID         string          `json:"id"`
	MemberID   int64           `json:"member_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     string          `json:"status"`
}

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID   string `json:"order_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// OrderCanceledData is the payload for an order.canceled event.
type OrderCanceledData struct {
	OrderID        string `json:"order_id"`
	PreviousStatus string `json:"previous_status"`
}

// Publisher is the part of pkgkafka.Producer the event producer needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes order domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the order service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderCreated publishes an order.created event with the full order snapshot.
func (p *Producer) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	data := OrderCreatedData{
		ID:         order.ID,
		MemberID:   order.MemberID,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		Status:     order.Status.String(),
	}
	if err := p.publish(ctx, TopicOrderCreated, order.ID, data, statusMetadata{status: order.Status}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.created event",
		slog.String("order_id", order.ID),
		slog.Int64("member_id", order.MemberID),
	)
	return nil
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, orderID string, oldStatus, newStatus domain.OrderStatus) error {
	data := OrderStatusChangedData{
		OrderID:   orderID,
		OldStatus: oldStatus.String(),
		NewStatus: newStatus.String(),
	}
	if err := p.publish(ctx, TopicOrderStatusChanged, orderID, data, statusMetadata{status: newStatus, previous: oldStatus}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", orderID),
		slog.String("old_status", oldStatus.String()),
		slog.String("new_status", newStatus.String()),
	)
	return nil
}

// PublishOrderCanceled publishes an order.canceled event.
func (p *Producer) PublishOrderCanceled(ctx context.Context, orderID string, previous domain.OrderStatus) error {
	data := OrderCanceledData{
		OrderID:        orderID,
		PreviousStatus: previous.String(),
	}
	if err := p.publish(ctx, TopicOrderCanceled, orderID, data, statusMetadata{status: domain.OrderStatusCancelled, previous: previous}); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published order.canceled event",
		slog.String("order_id", orderID),
	)
	return nil
}

func (p *Producer) publish(ctx context.Context, topic, orderID string, data any, meta statusMetadata) error {
	event, err := pkgkafka.NewEvent(topic, orderID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithMetadata(MetadataStatus, meta.status.String()).
		WithMetadata(MetadataPreviousStatus, meta.previous.String())
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	return nil
}

// Noop discards events. It is used when no Kafka brokers are configured.
type Noop struct{}

func (Noop) PublishOrderCreated(context.Context, *domain.Order) error { return nil }
func (Noop) PublishOrderStatusChanged(context.Context, string, domain.OrderStatus, domain.OrderStatus) error {
	return nil
}
func (Noop) PublishOrderCanceled(context.Context, string, domain.OrderStatus) error { return nil }
