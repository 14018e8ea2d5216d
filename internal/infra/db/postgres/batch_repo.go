package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
)

var _ repository.BatchRepository = (*batchRepo)(nil)

type batchRepo struct{ pool *pgxpool.Pool }

func NewBatchRepo(pool *pgxpool.Pool) *batchRepo {
	return &batchRepo{pool: pool}
}

const batchColumns = `id, exam_id, slug, title, description, price, expiry_months, created_at, updated_at`

func scanBatch(row pgx.Row) (*model.Batch, error) {
	b := &model.Batch{}
	if err := row.Scan(&b.ID, &b.ExamID, &b.Slug, &b.Title, &b.Description, &b.Price, &b.ExpiryMonths, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return b, nil
}

func (r *batchRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Batch, error) {
	const q = `SELECT ` + batchColumns + ` FROM batches WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanBatch(row)
}

func (r *batchRepo) FindBySlug(ctx context.Context, tx repository.Tx, slug string) (*model.Batch, error) {
	const q = `SELECT ` + batchColumns + ` FROM batches WHERE slug=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, slug)
	if err != nil {
		return nil, err
	}
	return scanBatch(row)
}
