package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/utafrali/order-service/internal/domain"
	apperrors "github.com/utafrali/order-service/pkg/errors"
	"github.com/utafrali/order-service/pkg/resilience"
)

// PaymentFallbackPrefix starts the message of a payment that could not be
// attempted.
const PaymentFallbackPrefix = "Payment service unavailable or failed: "

// PaymentFailureMessage describes a payment call that ended in err. Classified
// errors contribute their client-facing message only.
func PaymentFailureMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Code != "INTERNAL_ERROR" {
		return PaymentFallbackPrefix + appErr.Message
	}
	return PaymentFallbackPrefix + err.Error()
}

// ResilientMemberClient decorates a MemberClient with retries, a circuit
// breaker and, when enabled, the "unknown member" fallback.
type ResilientMemberClient struct {
	next     MemberClient
	policy   *resilience.Policy[domain.Member]
	fallback bool
}

// NewResilientMemberClient wraps next with a policy built from cfg.
func NewResilientMemberClient(next MemberClient, cfg resilience.Config, fallback bool, logger *slog.Logger) *ResilientMemberClient {
	return &ResilientMemberClient{
		next:     next,
		policy:   resilience.New[domain.Member](cfg, logger),
		fallback: fallback,
	}
}

func (c *ResilientMemberClient) GetMember(ctx context.Context, id int64) (domain.Member, error) {
	p := c.policy
	if c.fallback {
		p = p.WithFallback(func(context.Context, error) domain.Member {
			return domain.Member{ID: id}
		})
	}
	return p.Execute(ctx, func(ctx context.Context) (domain.Member, error) {
		return c.next.GetMember(ctx, id)
	})
}

// ResilientProductClient decorates a ProductClient. Its fallback reports the
// product as unavailable so nothing is oversold.
type ResilientProductClient struct {
	next     ProductClient
	policy   *resilience.Policy[domain.Stock]
	fallback bool
}

// NewResilientProductClient wraps next with a policy built from cfg.
func NewResilientProductClient(next ProductClient, cfg resilience.Config, fallback bool, logger *slog.Logger) *ResilientProductClient {
	return &ResilientProductClient{
		next:     next,
		policy:   resilience.New[domain.Stock](cfg, logger),
		fallback: fallback,
	}
}

func (c *ResilientProductClient) CheckStock(ctx context.Context, productID int64, quantity int) (domain.Stock, error) {
	p := c.policy
	if c.fallback {
		p = p.WithFallback(func(context.Context, error) domain.Stock {
			return domain.Stock{ProductID: productID, Price: decimal.Zero}
		})
	}
	return p.Execute(ctx, func(ctx context.Context) (domain.Stock, error) {
		return c.next.CheckStock(ctx, productID, quantity)
	})
}

// ResilientPaymentClient decorates a PaymentClient. Its fallback is a failed
// payment whose message carries the cause.
type ResilientPaymentClient struct {
	next     PaymentClient
	policy   *resilience.Policy[domain.Payment]
	fallback bool
}

// NewResilientPaymentClient wraps next with a policy built from cfg.
func NewResilientPaymentClient(next PaymentClient, cfg resilience.Config, fallback bool, logger *slog.Logger) *ResilientPaymentClient {
	return &ResilientPaymentClient{
		next:     next,
		policy:   resilience.New[domain.Payment](cfg, logger),
		fallback: fallback,
	}
}

func (c *ResilientPaymentClient) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Payment, error) {
	p := c.policy
	if c.fallback {
		p = p.WithFallback(func(_ context.Context, err error) domain.Payment {
			return domain.Payment{Success: false, Message: PaymentFailureMessage(err)}
		})
	}
	return p.Execute(ctx, func(ctx context.Context) (domain.Payment, error) {
		return c.next.ProcessPayment(ctx, orderID, amount)
	})
}
