package model

import (
	"time"

	"examprep-marketplace/internal/domain"
)

type GrantStatus string

const (
	GrantStatusActive  GrantStatus = "active"
	GrantStatusExpired GrantStatus = "expired" // set by the periodic sweep
	GrantStatusRevoked GrantStatus = "revoked" // administrative action only
)

// AccessGrant records confirmed, time-boxed access to a batch for a user.
// It is the single source of truth for "can this user use this batch".
type AccessGrant struct {
	ID        string  // UUID
	UserID    string  // UUID
	BatchID   string  // UUID
	OrderID   *string // nil exactly when the grant came from a free batch
	ValidFrom time.Time
	ValidTill time.Time
	Status    GrantStatus
	CreatedAt time.Time
}

// NewAccessGrant builds an active grant valid for the batch's expiry window.
// orderID is nil for the free-checkout path.
func NewAccessGrant(id, userID string, batch *Batch, orderID *string, now time.Time) (*AccessGrant, error) {
	if id == "" || userID == "" || batch == nil {
		return nil, domain.ErrInvalidArgument
	}
	return &AccessGrant{
		ID:        id,
		UserID:    userID,
		BatchID:   batch.ID,
		OrderID:   orderID,
		ValidFrom: now,
		ValidTill: AddMonths(now, batch.Expiry()),
		Status:    GrantStatusActive,
		CreatedAt: now,
	}, nil
}

// Usable reports whether the grant authorizes access at the given instant.
func (g *AccessGrant) Usable(now time.Time) bool {
	return g.Status == GrantStatusActive && g.ValidTill.After(now)
}

// AddMonths advances t by the given number of calendar months, clamping to the
// last day of the target month when the source day does not exist there
// (Jan 31 + 3 months = Apr 30, not May 1). time.Time.AddDate normalizes
// overflow forward, which silently stretches billing windows.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
