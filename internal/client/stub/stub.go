// Package stub provides deterministic stand-ins for the member, product and
// payment services. They are intended for local development and demos.
package stub

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/order-service/internal/domain"
)

// PaymentLimit is the largest amount the stub payment service accepts.
var PaymentLimit = decimal.NewFromInt(1000)

// MemberClient knows member 1 (active) and member 2 (inactive).
type MemberClient struct{}

// NewMemberClient creates a stub member client.
func NewMemberClient() *MemberClient {
	return &MemberClient{}
}

func (MemberClient) GetMember(_ context.Context, id int64) (domain.Member, error) {
	switch id {
	case 1:
		return domain.Member{ID: id, Exists: true, Active: true}, nil
	case 2:
		return domain.Member{ID: id, Exists: true, Active: false}, nil
	default:
		return domain.Member{ID: id}, nil
	}
}

type product struct {
	stock int
	price decimal.Decimal
}

var catalog = map[int64]product{
	101: {stock: 100, price: decimal.RequireFromString("50.00")},
	102: {stock: 2, price: decimal.RequireFromString("100.00")},
	103: {stock: 0, price: decimal.RequireFromString("25.00")},
}

// ProductClient serves a fixed three-product catalog.
type ProductClient struct{}

// NewProductClient creates a stub product client.
func NewProductClient() *ProductClient {
	return &ProductClient{}
}

func (ProductClient) CheckStock(_ context.Context, productID int64, _ int) (domain.Stock, error) {
	p, ok := catalog[productID]
	if !ok {
		return domain.Stock{ProductID: productID, Price: decimal.Zero}, nil
	}
	return domain.Stock{ProductID: productID, Available: true, Stock: p.stock, Price: p.price}, nil
}

// PaymentClient approves every amount up to PaymentLimit.
type PaymentClient struct{}

// NewPaymentClient creates a stub payment client.
func NewPaymentClient() *PaymentClient {
	return &PaymentClient{}
}

func (PaymentClient) ProcessPayment(_ context.Context, _ string, amount decimal.Decimal) (domain.Payment, error) {
	if amount.GreaterThan(PaymentLimit) {
		return domain.Payment{Success: false, Message: "Insufficient funds or limit exceeded"}, nil
	}
	return domain.Payment{
		TransactionID: uuid.NewString(),
		Success:       true,
		Message:       "Payment successful",
	}, nil
}
