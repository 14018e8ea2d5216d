package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, batch_id, amount, currency, provider, provider_order_id, provider_payment_id, receipt, status, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	if err := row.Scan(&o.ID, &o.UserID, &o.BatchID, &o.Amount, &o.Currency, &o.Provider, &o.ProviderOrderID, &o.ProviderPaymentID, &o.Receipt, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, o.BatchID, o.Amount, o.Currency, o.Provider, o.ProviderOrderID, o.ProviderPaymentID, o.Receipt, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *orderRepo) FindByProviderOrderID(ctx context.Context, tx repository.Tx, providerOrderID string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE provider_order_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, providerOrderID)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

// MarkPaidIfCreated is the order-status idempotency gate: the WHERE clause
// makes the created->paid transition atomic, so concurrent deliveries of the
// same capture event cannot both pass.
func (r *orderRepo) MarkPaidIfCreated(ctx context.Context, tx repository.Tx, id, providerPaymentID string) (bool, error) {
	const q = `
UPDATE orders
   SET status = 'paid',
       provider_payment_id = $2,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'created';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, providerPaymentID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) MarkFailedIfCreated(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	const q = `
UPDATE orders
   SET status = 'failed',
       updated_at = NOW()
 WHERE id = $1
   AND status = 'created';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) ListCreatedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE status='created' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
