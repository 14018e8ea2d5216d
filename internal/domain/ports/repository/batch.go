package repository

import (
	"context"

	"examprep-marketplace/internal/domain/model"
)

// BatchRepository is the read surface the purchase core needs from the
// catalog. Price and expiry always come from this record, never the client.
type BatchRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Batch, error)
	FindBySlug(ctx context.Context, tx Tx, slug string) (*model.Batch, error)
}
