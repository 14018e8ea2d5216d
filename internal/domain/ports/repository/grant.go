package repository

import (
	"context"
	"time"

	"examprep-marketplace/internal/domain/model"
)

// AccessGrantRepository persists confirmed access. A partial unique index on
// (user_id, batch_id) for active rows backs Create's ErrAlreadyExists.
type AccessGrantRepository interface {
	// Create inserts a new grant. Returns domain.ErrAlreadyExists when an
	// active grant for the same (user, batch) already exists.
	Create(ctx context.Context, tx Tx, g *model.AccessGrant) error
	// FindActive returns the active, unexpired grant for (user, batch) at
	// the given instant, or domain.ErrNotFound.
	FindActive(ctx context.Context, tx Tx, userID, batchID string, now time.Time) (*model.AccessGrant, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.AccessGrant, error)
	// ExpireDue flips active grants whose validity window has passed to
	// expired, returning how many rows changed.
	ExpireDue(ctx context.Context, tx Tx, now time.Time, limit int) (int64, error)
}
