package model

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created" // provider order exists; awaiting confirmation
	OrderStatusPaid    OrderStatus = "paid"    // capture confirmed by provider webhook
	OrderStatusFailed  OrderStatus = "failed"  // provider reported failure, or swept as stale
)

// Order records one checkout attempt against the payment provider.
// The provider-issued order id is the only key used during confirmation;
// client-supplied identifiers are never trusted.
type Order struct {
	ID                string // UUID
	UserID            string // UUID
	BatchID           string // UUID
	Amount            int64  // minor units (paise), to avoid float errors
	Currency          string // "INR"
	Provider          string // e.g. "razorpay"
	ProviderOrderID   string // unique, assigned by the provider at creation
	ProviderPaymentID string // set once a capture is confirmed
	Receipt           string // our receipt identifier sent to the provider
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AmountMinor converts a catalog price in rupees to integer paise.
func AmountMinor(price float64) int64 {
	return int64(math.Round(price * 100))
}
