package usecase

import (
	"context"
	"errors"
	"time"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// AccessUseCase answers "does user U have access to batch B right now" and
// lists a user's purchase history. Pure reads, consulted by every
// protected-content path.
type AccessUseCase interface {
	HasActiveAccess(ctx context.Context, userID, batchID string) (bool, error)
	// ListPurchases returns every grant the user ever held, newest first,
	// including expired and revoked ones.
	ListPurchases(ctx context.Context, userID string) ([]*model.AccessGrant, error)
}

type accessUC struct {
	grants repository.AccessGrantRepository
	now    func() time.Time
}

func NewAccessUseCase(grants repository.AccessGrantRepository) *accessUC {
	return &accessUC{grants: grants, now: time.Now}
}

func (u *accessUC) HasActiveAccess(ctx context.Context, userID, batchID string) (bool, error) {
	if userID == "" || batchID == "" {
		return false, nil
	}
	_, err := u.grants.FindActive(ctx, nil, userID, batchID, u.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (u *accessUC) ListPurchases(ctx context.Context, userID string) ([]*model.AccessGrant, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	return u.grants.ListByUser(ctx, nil, userID)
}
