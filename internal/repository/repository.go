package repository

import (
	"context"
	"errors"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/pkg/pagination"
)

// ErrDuplicateID is returned by Create when the order id is already taken.
// Ids are generated by the service, so a collision is a server fault.
var ErrDuplicateID = errors.New("order id already exists")

// SortFields are the API sort keys accepted by List, mapped to their columns.
var SortFields = map[string]string{
	"createdAt":  "created_at",
	"updatedAt":  "updated_at",
	"totalPrice": "total_price",
	"quantity":   "quantity",
	"status":     "status",
}

// SortFieldNames returns the keys of SortFields.
func SortFieldNames() []string {
	names := make([]string, 0, len(SortFields))
	for k := range SortFields {
		names = append(names, k)
	}
	return names
}

// OrderFilter defines filter, paging and sort criteria for listing orders.
type OrderFilter struct {
	pagination.Params
	Status *domain.OrderStatus
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts a new order. The store sets CreatedAt and UpdatedAt on o.
	Create(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order by its id.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns one page of orders matching filter and the total match count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// Update overwrites the mutable fields of an existing order and refreshes
	// UpdatedAt on o.
	Update(ctx context.Context, o *domain.Order) error
}

// Transactor runs fn inside a single atomic scope. Writes made through the
// repository passed to fn become visible only if fn returns nil; an error or a
// panic discards them.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repo OrderRepository) error) error
}
