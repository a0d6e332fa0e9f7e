// Package memory provides an in-process order store for local runs and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/internal/repository"
	apperrors "github.com/utafrali/order-service/pkg/errors"
)

// Store holds committed orders. It implements both repository.OrderRepository
// and repository.Transactor.
type Store struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
	now    func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders: make(map[string]domain.Order),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ repository.OrderRepository = (*Store)(nil)
	_ repository.Transactor      = (*Store)(nil)
)

// Create inserts o.
func (s *Store) Create(ctx context.Context, o *domain.Order) error {
	return s.WithinTx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
		return repo.Create(ctx, o)
	})
}

// GetByID returns a copy of the stored order.
func (s *Store) GetByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return &o, nil
}

// List filters, sorts and pages the committed orders.
func (s *Store) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	compare, err := comparator(filter.SortField)
	if err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if filter.Status == nil || o.Status == *filter.Status {
			matched = append(matched, o)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Order) int {
		c := compare(a, b)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if filter.SortDesc {
			return -c
		}
		return c
	})

	total := len(matched)
	start := min(max(filter.Offset(), 0), total)
	end := min(start+filter.Size, total)
	return matched[start:end], total, nil
}

// Update overwrites an existing order.
func (s *Store) Update(ctx context.Context, o *domain.Order) error {
	return s.WithinTx(ctx, func(ctx context.Context, repo repository.OrderRepository) error {
		return repo.Update(ctx, o)
	})
}

// WithinTx stages writes made through repo and applies them atomically when
// fn returns nil. Reads through repo see the staged writes.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.OrderRepository) error) error {
	tx := &txRepo{store: s, staged: make(map[string]domain.Order)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.apply(tx)
}

func (s *Store) apply(tx *txRepo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range tx.created {
		if _, exists := s.orders[id]; exists {
			return fmt.Errorf("insert order %s: %w", id, repository.ErrDuplicateID)
		}
	}
	for id, o := range tx.staged {
		s.orders[id] = o
	}
	return nil
}

func comparator(field string) (func(a, b domain.Order) int, error) {
	switch field {
	case "createdAt":
		return func(a, b domain.Order) int { return a.CreatedAt.Compare(b.CreatedAt) }, nil
	case "updatedAt":
		return func(a, b domain.Order) int { return a.UpdatedAt.Compare(b.UpdatedAt) }, nil
	case "totalPrice":
		return func(a, b domain.Order) int { return a.TotalPrice.Cmp(b.TotalPrice) }, nil
	case "quantity":
		return func(a, b domain.Order) int { return cmp.Compare(a.Quantity, b.Quantity) }, nil
	case "status":
		return func(a, b domain.Order) int { return cmp.Compare(a.Status, b.Status) }, nil
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported sort field %q", field))
	}
}
