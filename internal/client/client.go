// Package client holds the order service's view of its three downstream
// collaborators: the member, product and payment services.
package client

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/utafrali/order-service/internal/domain"
)

// MemberClient looks up purchasers.
type MemberClient interface {
	GetMember(ctx context.Context, id int64) (domain.Member, error)
}

// ProductClient checks whether a product can supply a quantity and at what price.
type ProductClient interface {
	CheckStock(ctx context.Context, productID int64, quantity int) (domain.Stock, error)
}

// PaymentClient charges an order.
type PaymentClient interface {
	ProcessPayment(ctx context.Context, orderID string, amount decimal.Decimal) (domain.Payment, error)
}

// Set bundles the three clients the order workflow depends on.
type Set struct {
	Member  MemberClient
	Product ProductClient
	Payment PaymentClient
}
