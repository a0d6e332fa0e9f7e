package domain

import "github.com/shopspring/decimal"

// Member is the member service's view of a purchaser.
type Member struct {
	ID     int64 `json:"id"`
	Exists bool  `json:"exists"`
	Active bool  `json:"active"`
}

// CanOrder reports whether the member may place orders.
func (m Member) CanOrder() bool {
	return m.Exists && m.Active
}

// Stock is the product service's answer to a stock check.
type Stock struct {
	ProductID int64           `json:"productId"`
	Available bool            `json:"available"`
	Stock     int             `json:"stock"`
	Price     decimal.Decimal `json:"price"`
}

// Covers reports whether the product can supply quantity units.
func (s Stock) Covers(quantity int) bool {
	return s.Available && s.Stock >= quantity
}

// Payment is the outcome of a payment attempt.
type Payment struct {
	TransactionID string `json:"transactionId"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
}
