package repository

import (
	"context"
	"time"

	"examprep-marketplace/internal/domain/model"
)

// OrderRepository persists payment intent. Orders are created by checkout,
// transitioned only by the confirmation handler (or the stale sweep), and
// never deleted.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByProviderOrderID(ctx context.Context, tx Tx, providerOrderID string) (*model.Order, error)
	// MarkPaidIfCreated atomically transitions created->paid and records the
	// provider payment id. Returns false when the order was not in `created`,
	// which is the redelivery idempotency gate.
	MarkPaidIfCreated(ctx context.Context, tx Tx, id, providerPaymentID string) (bool, error)
	// MarkFailedIfCreated atomically transitions created->failed. A failure
	// event arriving after a capture must not clobber the paid status.
	MarkFailedIfCreated(ctx context.Context, tx Tx, id string) (bool, error)
	ListCreatedOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
}
