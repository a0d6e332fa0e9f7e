package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/order-service/internal/domain"
	apperrors "github.com/utafrali/order-service/pkg/errors"
	"github.com/utafrali/order-service/pkg/resilience"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy(name string) resilience.Config {
	return resilience.Config{
		Name:           name,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		FailureRatio:   0.5,
		MinRequests:    1000,
		MaxRequests:    1,
		OpenTimeout:    time.Second,
	}
}

type memberFunc func(ctx context.Context, id int64) (domain.Member, error)

func (f memberFunc) GetMember(ctx context.Context, id int64) (domain.Member, error) { return f(ctx, id) }

type productFunc func(ctx context.Context, id int64, qty int) (domain.Stock, error)

func (f productFunc) CheckStock(ctx context.Context, id int64, qty int) (domain.Stock, error) {
	return f(ctx, id, qty)
}

type paymentFunc func(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Payment, error)

func (f paymentFunc) ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Payment, error) {
	return f(ctx, orderID, amount)
}

func TestResilientMemberClient(t *testing.T) {
	t.Run("passes through success", func(t *testing.T) {
		var calls atomic.Int32
		next := memberFunc(func(_ context.Context, id int64) (domain.Member, error) {
			calls.Add(1)
			return domain.Member{ID: id, Exists: true, Active: true}, nil
		})

		c := NewResilientMemberClient(next, testPolicy("member-ok"), true, discardLogger())
		m, err := c.GetMember(context.Background(), 1)

		require.NoError(t, err)
		assert.True(t, m.CanOrder())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries then falls back to unknown member", func(t *testing.T) {
		var calls atomic.Int32
		next := memberFunc(func(context.Context, int64) (domain.Member, error) {
			calls.Add(1)
			return domain.Member{}, apperrors.ServiceUnavailable("member down")
		})

		c := NewResilientMemberClient(next, testPolicy("member-down"), true, discardLogger())
		m, err := c.GetMember(context.Background(), 42)

		require.NoError(t, err)
		assert.Equal(t, domain.Member{ID: 42}, m)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		next := memberFunc(func(context.Context, int64) (domain.Member, error) {
			calls.Add(1)
			return domain.Member{}, apperrors.ExternalServiceClient("client error from member (status 404)")
		})

		c := NewResilientMemberClient(next, testPolicy("member-404"), true, discardLogger())
		m, err := c.GetMember(context.Background(), 5)

		require.NoError(t, err)
		assert.False(t, m.CanOrder())
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fallback disabled propagates the kind", func(t *testing.T) {
		next := memberFunc(func(context.Context, int64) (domain.Member, error) {
			return domain.Member{}, apperrors.ExternalServiceClient("client error from member (status 400)")
		})

		c := NewResilientMemberClient(next, testPolicy("member-nofb"), false, discardLogger())
		_, err := c.GetMember(context.Background(), 5)

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrExternalClient)
	})
}

func TestResilientProductClient_FallbackIsUnavailable(t *testing.T) {
	next := productFunc(func(context.Context, int64, int) (domain.Stock, error) {
		return domain.Stock{}, apperrors.ServiceUnavailable("product down")
	})

	c := NewResilientProductClient(next, testPolicy("product-down"), true, discardLogger())
	s, err := c.CheckStock(context.Background(), 101, 2)

	require.NoError(t, err)
	assert.Equal(t, int64(101), s.ProductID)
	assert.False(t, s.Available)
	assert.Zero(t, s.Stock)
	assert.True(t, s.Price.IsZero())
}

func TestResilientProductClient_FallbackDisabled(t *testing.T) {
	next := productFunc(func(context.Context, int64, int) (domain.Stock, error) {
		return domain.Stock{}, apperrors.ServiceUnavailable("product down")
	})

	c := NewResilientProductClient(next, testPolicy("product-nofb"), false, discardLogger())
	_, err := c.CheckStock(context.Background(), 101, 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
}

func TestResilientPaymentClient(t *testing.T) {
	t.Run("declined payment is not an error", func(t *testing.T) {
		var calls atomic.Int32
		next := paymentFunc(func(context.Context, string, decimal.Decimal) (domain.Payment, error) {
			calls.Add(1)
			return domain.Payment{Success: false, Message: "Insufficient funds or limit exceeded"}, nil
		})

		c := NewResilientPaymentClient(next, testPolicy("payment-declined"), true, discardLogger())
		p, err := c.ProcessPayment(context.Background(), "o-1", decimal.NewFromInt(5000))

		require.NoError(t, err)
		assert.False(t, p.Success)
		assert.Equal(t, "Insufficient funds or limit exceeded", p.Message)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("fallback carries the cause", func(t *testing.T) {
		next := paymentFunc(func(context.Context, string, decimal.Decimal) (domain.Payment, error) {
			return domain.Payment{}, apperrors.ServiceUnavailable("payment is unreachable")
		})

		c := NewResilientPaymentClient(next, testPolicy("payment-down"), true, discardLogger())
		p, err := c.ProcessPayment(context.Background(), "o-1", decimal.NewFromInt(10))

		require.NoError(t, err)
		assert.False(t, p.Success)
		assert.Empty(t, p.TransactionID)
		assert.True(t, strings.HasPrefix(p.Message, PaymentFallbackPrefix), p.Message)
		assert.Contains(t, p.Message, "payment is unreachable")
	})

	t.Run("canceled context stops retrying", func(t *testing.T) {
		var calls atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		next := paymentFunc(func(context.Context, string, decimal.Decimal) (domain.Payment, error) {
			calls.Add(1)
			cancel()
			return domain.Payment{}, context.Canceled
		})

		c := NewResilientPaymentClient(next, testPolicy("payment-cancel"), false, discardLogger())
		_, err := c.ProcessPayment(ctx, "o-1", decimal.NewFromInt(10))

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestPaymentFailureMessage(t *testing.T) {
	wrapped := fmt.Errorf("process payment for order o-1: %w", apperrors.ServiceUnavailable("payment unavailable (status 503): maintenance"))
	assert.Equal(t, PaymentFallbackPrefix+"payment unavailable (status 503): maintenance", PaymentFailureMessage(wrapped))

	assert.Equal(t, PaymentFallbackPrefix+"circuit breaker is open", PaymentFailureMessage(errors.New("circuit breaker is open")))
}
