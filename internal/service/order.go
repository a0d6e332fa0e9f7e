package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/order-service/internal/cache"
	"github.com/utafrali/order-service/internal/client"
	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/internal/repository"
	apperrors "github.com/utafrali/order-service/pkg/errors"
	"github.com/utafrali/order-service/pkg/logger"
	"github.com/utafrali/order-service/pkg/pagination"
	"github.com/utafrali/order-service/pkg/tracing"
)

var tracer = tracing.Tracer("github.com/utafrali/order-service/internal/service")

// EventPublisher publishes order domain events. Failures are logged, never
// returned to callers.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, orderID string, oldStatus, newStatus domain.OrderStatus) error
	PublishOrderCanceled(ctx context.Context, orderID string, previous domain.OrderStatus) error
}

// OrderCache caches single orders by id. Get returns cache.ErrMiss when the
// order is not cached. Add stores only when no entry exists, so a fill from
// a read never replaces an entry written after that read.
type OrderCache interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Add(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id string) error
}

// OrderService implements the business logic for order operations.
type OrderService struct {
	repo    repository.OrderRepository
	tx      repository.Transactor
	clients client.Set
	events  EventPublisher
	cache   OrderCache
	logger  *slog.Logger
	newID   func() string
}

// NewOrderService creates a new order service.
func NewOrderService(
	repo repository.OrderRepository,
	tx repository.Transactor,
	clients client.Set,
	events EventPublisher,
	cache OrderCache,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:    repo,
		tx:      tx,
		clients: clients,
		events:  events,
		cache:   cache,
		logger:  logger,
		newID:   uuid.NewString,
	}
}

// CreateOrderInput holds the parameters for creating an order. TotalPrice is
// used only when the product service reports no unit price. Status is
// validated but every order starts PENDING.
type CreateOrderInput struct {
	MemberID   int64
	ProductID  int64
	Quantity   int
	TotalPrice *decimal.Decimal
	Status     *domain.OrderStatus
}

// CreateOrder validates the member and stock, stores the order as PENDING,
// charges it and confirms it. The pending write and the confirmation commit
// together; a failed payment leaves no order behind.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder", trace.WithAttributes(
		attribute.Int64("order.member_id", in.MemberID),
		attribute.Int64("order.product_id", in.ProductID),
		attribute.Int("order.quantity", in.Quantity),
	))
	start := time.Now()
	defer func() {
		observe("create", start, err)
		tracing.End(span, err)
	}()

	if err := validateCreate(in); err != nil {
		return nil, err
	}

	member, err := s.clients.Member.GetMember(ctx, in.MemberID)
	if err != nil {
		return nil, fmt.Errorf("validate member: %w", err)
	}
	if !member.CanOrder() {
		return nil, apperrors.InvalidMember(in.MemberID)
	}

	stock, err := s.clients.Product.CheckStock(ctx, in.ProductID, in.Quantity)
	if err != nil {
		return nil, fmt.Errorf("check stock: %w", err)
	}
	if !stock.Covers(in.Quantity) {
		return nil, apperrors.OutOfStock(in.ProductID, in.Quantity)
	}

	total := decimal.Zero
	if in.TotalPrice != nil {
		total = *in.TotalPrice
	}
	if !stock.Price.IsZero() {
		total = stock.Price.Mul(decimal.NewFromInt(int64(in.Quantity)))
	}
	total = total.Round(domain.PriceScale)
	if !total.IsPositive() {
		return nil, apperrors.InvalidInput("totalPrice must be greater than 0")
	}

	order := &domain.Order{
		ID:         s.newID(),
		MemberID:   in.MemberID,
		ProductID:  in.ProductID,
		Quantity:   in.Quantity,
		TotalPrice: total,
		Status:     domain.OrderStatusPending,
	}
	ctx = logger.WithOrderID(ctx, order.ID)
	span.SetAttributes(attribute.String("order.id", order.ID))

	var payment domain.Payment
	err = s.tx.WithinTx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
		if err := repo.Create(ctx, order); err != nil {
			return fmt.Errorf("insert pending order: %w", err)
		}

		p, err := s.clients.Payment.ProcessPayment(ctx, order.ID, order.TotalPrice)
		if err != nil {
			return apperrors.PaymentFailed(client.PaymentFailureMessage(err))
		}
		if !p.Success {
			msg := p.Message
			if msg == "" {
				msg = "payment was declined"
			}
			return apperrors.PaymentFailed(msg)
		}
		payment = p

		order.Status = domain.OrderStatusConfirmed
		if err := repo.Update(ctx, order); err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrPaymentFailed) {
			s.logger.WarnContext(ctx, "payment failed, order rolled back",
				slog.String("order_id", order.ID),
				slog.String("amount", order.TotalPrice.String()),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	if err := s.events.PublishOrderCreated(ctx, order); err != nil {
		// Do not fail the operation if event publishing fails.
		s.logger.ErrorContext(ctx, "failed to publish order.created event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
	s.cacheOrder(ctx, order)

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.Int64("member_id", order.MemberID),
		slog.Int64("product_id", order.ProductID),
		slog.String("total_price", order.TotalPrice.String()),
		slog.String("transaction_id", payment.TransactionID),
	)

	return order, nil
}

func validateCreate(in CreateOrderInput) error {
	if in.Quantity <= 0 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if in.TotalPrice != nil && in.TotalPrice.IsNegative() {
		return apperrors.InvalidInput("totalPrice must not be negative")
	}
	if in.Status != nil && !in.Status.IsValid() {
		return invalidStatus(*in.Status)
	}
	return nil
}

// GetOrder retrieves an order by its ID, serving from the cache when possible.
func (s *OrderService) GetOrder(ctx context.Context, id string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	start := time.Now()
	defer func() {
		observe("get", start, err)
		tracing.End(span, err)
	}()

	cached, err := s.cache.Get(ctx, id)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	case !errors.Is(err, cache.ErrMiss):
		s.logger.WarnContext(ctx, "order cache read failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if err := s.cache.Add(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "order cache fill failed",
			slog.String("order_id", id),
			slog.String("error", err.Error()),
		)
	}
	return order, nil
}

// ListOrders returns one page of orders and the total number of matches.
// Missing paging values take their defaults and the size is capped.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) (_ []domain.Order, _ int, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders")
	start := time.Now()
	defer func() {
		observe("list", start, err)
		tracing.End(span, err)
	}()

	if filter.Page < 0 {
		filter.Page = 0
	}
	if filter.Size <= 0 {
		filter.Size = pagination.DefaultSize
	}
	if filter.Size > pagination.MaxSize {
		filter.Size = pagination.MaxSize
	}
	if filter.Page > pagination.MaxPage(filter.Size) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("page %d is out of range for size %d", filter.Page, filter.Size))
	}
	if filter.SortField == "" {
		defaults := pagination.DefaultParams()
		filter.SortField, filter.SortDesc = defaults.SortField, defaults.SortDesc
	}
	if _, ok := repository.SortFields[filter.SortField]; !ok {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unsupported sort field %q", filter.SortField))
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, 0, invalidStatus(*filter.Status)
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// UpdateOrder applies the fields set in patch. Cancelling is only allowed
// from PENDING or CONFIRMED; other status changes are taken as written.
// Concurrent updates are last-writer-wins.
func (s *OrderService) UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateOrder", trace.WithAttributes(attribute.String("order.id", id)))
	start := time.Now()
	defer func() {
		observe("update", start, err)
		tracing.End(span, err)
	}()
	ctx = logger.WithOrderID(ctx, id)

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order for update: %w", err)
	}

	oldStatus := order.Status
	if patch.Status != nil && !order.CanTransitionTo(*patch.Status) {
		return nil, apperrors.InvalidStateTransition(oldStatus.String(), patch.Status.String())
	}

	if patch.TotalPrice != nil {
		rounded := patch.TotalPrice.Round(domain.PriceScale)
		patch.TotalPrice = &rounded
	}
	patch.Apply(order)
	if err := s.repo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	s.refreshCache(ctx, order)

	if order.Status != oldStatus {
		s.publishStatusChange(ctx, order.ID, oldStatus, order.Status)
	}

	s.logger.InfoContext(ctx, "order updated",
		slog.String("order_id", id),
		slog.String("old_status", oldStatus.String()),
		slog.String("new_status", order.Status.String()),
	)

	return order, nil
}

func validatePatch(p domain.OrderPatch) error {
	if p.Quantity != nil && *p.Quantity < 1 {
		return apperrors.InvalidInput("quantity must be at least 1")
	}
	if p.TotalPrice != nil && p.TotalPrice.IsNegative() {
		return apperrors.InvalidInput("totalPrice must not be negative")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return invalidStatus(*p.Status)
	}
	return nil
}

func (s *OrderService) publishStatusChange(ctx context.Context, orderID string, from, to domain.OrderStatus) {
	var err error
	if to == domain.OrderStatusCancelled {
		err = s.events.PublishOrderCanceled(ctx, orderID, from)
	} else {
		err = s.events.PublishOrderStatusChanged(ctx, orderID, from, to)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order status event",
			slog.String("order_id", orderID),
			slog.String("new_status", to.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *OrderService) cacheOrder(ctx context.Context, order *domain.Order) {
	if err := s.cache.Set(ctx, order); err != nil {
		s.logger.WarnContext(ctx, "order cache write failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

// refreshCache writes the updated order through. If the write fails the entry
// is evicted so readers go back to the store.
func (s *OrderService) refreshCache(ctx context.Context, order *domain.Order) {
	err := s.cache.Set(ctx, order)
	if err == nil {
		return
	}
	if delErr := s.cache.Delete(ctx, order.ID); delErr != nil {
		err = errors.Join(err, delErr)
	}
	s.logger.WarnContext(ctx, "order cache refresh failed",
		slog.String("order_id", order.ID),
		slog.String("error", err.Error()),
	)
}

func invalidStatus(status domain.OrderStatus) error {
	names := make([]string, 0, 3)
	for _, st := range domain.ValidStatuses() {
		names = append(names, st.String())
	}
	return apperrors.InvalidInput(fmt.Sprintf("invalid status %q, must be one of: %s", status, strings.Join(names, ", ")))
}
