package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/order-service/internal/domain"
	"github.com/utafrali/order-service/internal/repository"
	"github.com/utafrali/order-service/pkg/database"
	apperrors "github.com/utafrali/order-service/pkg/errors"
)

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

const orderColumns = "id, member_id, product_id, quantity, total_price, status, created_at, updated_at"

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a repository over a pool or an open transaction.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts o and fills its timestamps from the database clock.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	const query = `
		INSERT INTO orders (id, member_id, product_id, quantity, total_price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING created_at, updated_at`

	ctx, end := database.TraceQuery(ctx, "CreateOrder", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		o.ID, o.MemberID, o.ProductID, o.Quantity, o.TotalPrice, string(o.Status),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert order %s: %w", o.ID, repository.ErrDuplicateID)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its id.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (_ *domain.Order, err error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE id = $1"

	ctx, end := database.TraceQuery(ctx, "GetOrder", query)
	defer func() { end(err) }()

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

// List returns one page of orders and the number of orders matching the filter.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) (_ []domain.Order, _ int, err error) {
	column, ok := repository.SortFields[filter.SortField]
	if !ok {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unsupported sort field %q", filter.SortField))
	}
	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}

	var (
		where string
		args  []any
	)
	if filter.Status != nil {
		where = "WHERE status = $1"
		args = append(args, string(*filter.Status))
	}

	countQuery := "SELECT count(*) FROM orders " + where
	ctx, end := database.TraceQuery(ctx, "ListOrders", countQuery)
	defer func() { end(err) }()

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	orders := make([]domain.Order, 0, filter.Size)
	if total == 0 || filter.Offset() >= total {
		return orders, total, nil
	}

	// id breaks ties so that pages are stable across requests.
	pageQuery := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d",
		orderColumns, where, column, direction, direction, len(args)+1, len(args)+2)
	args = append(args, filter.Size, filter.Offset())

	rows, err := r.db.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, total, nil
}

// Update overwrites the mutable columns of o and refreshes its updated_at.
func (r *OrderRepository) Update(ctx context.Context, o *domain.Order) (err error) {
	const query = `
		UPDATE orders
		SET member_id = $1, product_id = $2, quantity = $3, total_price = $4, status = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	ctx, end := database.TraceQuery(ctx, "UpdateOrder", query)
	defer func() { end(err) }()

	err = r.db.QueryRow(ctx, query,
		o.MemberID, o.ProductID, o.Quantity, o.TotalPrice, string(o.Status), o.ID,
	).Scan(&o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("order", o.ID)
		}
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	if err := row.Scan(
		&o.ID,
		&o.MemberID,
		&o.ProductID,
		&o.Quantity,
		&o.TotalPrice,
		&status,
		&o.CreatedAt,
		&o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}
