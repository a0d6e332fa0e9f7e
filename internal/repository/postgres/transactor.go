package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/order-service/internal/repository"
	"github.com/utafrali/order-service/pkg/database"
)

// Transactor runs repository work inside a pgx transaction.
type Transactor struct {
	db database.DBTX
}

// NewTransactor creates a Transactor that begins transactions on db.
func NewTransactor(db database.DBTX) *Transactor {
	return &Transactor{db: db}
}

// WithinTx begins a transaction, hands fn a repository bound to it and commits
// when fn returns nil. Any error or panic rolls the transaction back.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repo repository.OrderRepository) error) error {
	tx, err := t.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, NewOrderRepository(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
