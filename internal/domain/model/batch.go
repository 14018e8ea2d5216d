package model

import "time"

// Batch is a purchasable bundle of tests or files belonging to an exam.
// It is owned by the catalog; the purchase core only ever reads it.
type Batch struct {
	ID           string // UUID
	ExamID       string // UUID of the parent exam
	Slug         string
	Title        string
	Description  string
	Price        float64 // catalog price in rupees; 0 means free
	ExpiryMonths *int    // nil -> DefaultExpiryMonths
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DefaultExpiryMonths applies when a batch has no explicit expiry configured.
const DefaultExpiryMonths = 12

// Expiry returns the batch's validity duration in months.
func (b *Batch) Expiry() int {
	if b.ExpiryMonths == nil || *b.ExpiryMonths <= 0 {
		return DefaultExpiryMonths
	}
	return *b.ExpiryMonths
}

// Free reports whether checkout can grant access without a payment.
func (b *Batch) Free() bool { return b.Price <= 0 }
