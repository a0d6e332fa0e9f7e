package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// Order status constants.
const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// ValidStatuses returns all valid order statuses.
func ValidStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled}
}

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	return slices.Contains(ValidStatuses(), s)
}

func (s OrderStatus) String() string { return string(s) }

// PriceScale is the number of decimal places kept for prices.
const PriceScale = 2

// Order is a single-product purchase by a member.
type Order struct {
	ID         string          `json:"id"`
	MemberID   int64           `json:"memberId"`
	ProductID  int64           `json:"productId"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// cancellableFrom lists the states an order may be cancelled from.
var cancellableFrom = []OrderStatus{OrderStatusPending, OrderStatusConfirmed}

// CanTransitionTo reports whether the order may move to target. Cancelling is
// restricted to pending and confirmed orders; every other change is accepted
// as written.
func (o *Order) CanTransitionTo(target OrderStatus) bool {
	if target == OrderStatusCancelled {
		return slices.Contains(cancellableFrom, o.Status)
	}
	return target.IsValid()
}

// OrderPatch carries the fields of a partial update. Nil fields are left
// unchanged.
type OrderPatch struct {
	MemberID   *int64
	ProductID  *int64
	Quantity   *int
	TotalPrice *decimal.Decimal
	Status     *OrderStatus
}

// IsEmpty reports whether the patch changes nothing.
func (p OrderPatch) IsEmpty() bool {
	return p.MemberID == nil && p.ProductID == nil && p.Quantity == nil &&
		p.TotalPrice == nil && p.Status == nil
}

// Apply copies the set fields of p onto o. It does not validate.
func (p OrderPatch) Apply(o *Order) {
	if p.MemberID != nil {
		o.MemberID = *p.MemberID
	}
	if p.ProductID != nil {
		o.ProductID = *p.ProductID
	}
	if p.Quantity != nil {
		o.Quantity = *p.Quantity
	}
	if p.TotalPrice != nil {
		o.TotalPrice = *p.TotalPrice
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
}
