package memory

import (
	"context"
	"fmt"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/internal/repository"
	apperrors "github.com/utafrali/order-service/pkg/errors"
)

// txRepo is the repository handed to a WithinTx callback. Writes go to an
// overlay that is discarded unless the callback succeeds.
type txRepo struct {
	store   *Store
	staged  map[string]domain.Order
	created map[string]struct{}
}

func (t *txRepo) Create(_ context.Context, o *domain.Order) error {
	if _, err := t.lookup(o.ID); err == nil {
		return fmt.Errorf("insert order %s: %w", o.ID, repository.ErrDuplicateID)
	}
	now := t.store.now()
	o.CreatedAt = now
	o.UpdatedAt = now
	t.staged[o.ID] = *o
	if t.created == nil {
		t.created = make(map[string]struct{})
	}
	t.created[o.ID] = struct{}{}
	return nil
}

func (t *txRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List reads committed state only; staged rows are not listed.
func (t *txRepo) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	return t.store.List(ctx, filter)
}

func (t *txRepo) Update(_ context.Context, o *domain.Order) error {
	existing, err := t.lookup(o.ID)
	if err != nil {
		return err
	}
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = t.store.now()
	t.staged[o.ID] = *o
	return nil
}

func (t *txRepo) lookup(id string) (domain.Order, error) {
	if o, ok := t.staged[id]; ok {
		return o, nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if o, ok := t.store.orders[id]; ok {
		return o, nil
	}
	return domain.Order{}, apperrors.NotFound("order", id)
}
