package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/internal/repository"
	apperrors "github.com/utafrali/order-service/pkg/errors"
	"github.com/utafrali/order-service/pkg/pagination"
)

// newTestStore returns a store whose clock advances one second per call.
func newTestStore() *Store {
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s
}

func newOrder(id string, qty int, price int64, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:         id,
		MemberID:   1,
		ProductID:  101,
		Quantity:   qty,
		TotalPrice: decimal.NewFromInt(price),
		Status:     status,
	}
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	o := newOrder("a", 2, 100, domain.OrderStatusPending)

	require.NoError(t, s.Create(ctx, o))
	assert.False(t, o.CreatedAt.IsZero())
	assert.Equal(t, o.CreatedAt, o.UpdatedAt)

	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, *o, *got)

	got.Quantity = 99
	again, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Quantity, "callers receive copies")
}

func TestStore_CreateDuplicate(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, newOrder("a", 1, 10, domain.OrderStatusPending)))

	err := s.Create(ctx, newOrder("a", 1, 10, domain.OrderStatusPending))
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrDuplicateID)
	assert.Equal(t, apperrors.ErrInternal, apperrors.Kind(err))
}

func TestStore_GetByID_NotFound(t *testing.T) {
	_, err := newTestStore().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_Update(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	o := newOrder("a", 2, 100, domain.OrderStatusConfirmed)
	require.NoError(t, s.Create(ctx, o))
	created := o.CreatedAt

	o.Status = domain.OrderStatusCancelled
	require.NoError(t, s.Update(ctx, o))

	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
	assert.Equal(t, created, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(created))

	err = s.Update(ctx, newOrder("missing", 1, 1, domain.OrderStatusPending))
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_WithinTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	o := newOrder("a", 2, 100, domain.OrderStatusPending)

	err := s.WithinTx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
		if err := repo.Create(ctx, o); err != nil {
			return err
		}
		staged, err := repo.GetByID(ctx, "a")
		if err != nil {
			return err
		}
		staged.Status = domain.OrderStatusConfirmed
		return repo.Update(ctx, staged)
	})
	require.NoError(t, err)

	got, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusConfirmed, got.Status)
}

func TestStore_WithinTx_DiscardsOnError(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	declined := errors.New("payment declined")

	err := s.WithinTx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
		require.NoError(t, repo.Create(ctx, newOrder("a", 1, 10, domain.OrderStatusPending)))

		_, err := s.GetByID(ctx, "a")
		assert.ErrorIs(t, err, apperrors.ErrNotFound, "staged rows are invisible outside the scope")
		return declined
	})
	assert.ErrorIs(t, err, declined)

	_, err = s.GetByID(ctx, "a")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_WithinTx_DiscardsOnPanic(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.WithinTx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
			_ = repo.Create(ctx, newOrder("a", 1, 10, domain.OrderStatusPending))
			panic("boom")
		})
	})

	_, err := s.GetByID(ctx, "a")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	statuses := []domain.OrderStatus{domain.OrderStatusConfirmed, domain.OrderStatusPending, domain.OrderStatusCancelled}
	for i := 0; i < 12; i++ {
		o := newOrder(fmt.Sprintf("o-%02d", i), i+1, int64(100-i), statuses[i%3])
		require.NoError(t, s.Create(context.Background(), o))
	}
}

func TestStore_List_DefaultsNewestFirst(t *testing.T) {
	s := newTestStore()
	seed(t, s)

	orders, total, err := s.List(context.Background(), repository.OrderFilter{Params: pagination.DefaultParams()})
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, orders, 10)
	assert.Equal(t, "o-11", orders[0].ID)
	assert.Equal(t, "o-02", orders[9].ID)
}

func TestStore_List_SecondPage(t *testing.T) {
	s := newTestStore()
	seed(t, s)

	filter := repository.OrderFilter{Params: pagination.DefaultParams()}
	filter.Page = 1

	orders, total, err := s.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, orders, 2)
	assert.Equal(t, "o-01", orders[0].ID)
	assert.Equal(t, "o-00", orders[1].ID)

	filter.Page = 5
	orders, total, err = s.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Empty(t, orders)
}

func TestStore_List_StatusFilterAndSort(t *testing.T) {
	s := newTestStore()
	seed(t, s)
	status := domain.OrderStatusCancelled

	orders, total, err := s.List(context.Background(), repository.OrderFilter{
		Params: pagination.Params{Size: 10, SortField: "totalPrice"},
		Status: &status,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, orders, 4)
	for _, o := range orders {
		assert.Equal(t, domain.OrderStatusCancelled, o.Status)
	}
	assert.True(t, orders[0].TotalPrice.LessThan(orders[3].TotalPrice))
}

func TestStore_List_NegativeOffsetReturnsFirstRows(t *testing.T) {
	s := newTestStore()
	seed(t, s)

	orders, total, err := s.List(context.Background(), repository.OrderFilter{
		Params: pagination.Params{Page: -3, Size: 5, SortField: "createdAt", SortDesc: true},
	})

	require.NoError(t, err)
	assert.Equal(t, 12, total)
	assert.Len(t, orders, 5)
}

func TestStore_List_UnknownSort(t *testing.T) {
	_, _, err := newTestStore().List(context.Background(), repository.OrderFilter{
		Params: pagination.Params{Size: 10, SortField: "memberId"},
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
