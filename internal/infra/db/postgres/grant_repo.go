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

var _ repository.AccessGrantRepository = (*grantRepo)(nil)

type grantRepo struct{ pool *pgxpool.Pool }

func NewGrantRepo(pool *pgxpool.Pool) *grantRepo {
	return &grantRepo{pool: pool}
}

const grantColumns = `id, user_id, batch_id, order_id, valid_from, valid_till, status, created_at`

func scanGrant(row pgx.Row) (*model.AccessGrant, error) {
	g := &model.AccessGrant{}
	if err := row.Scan(&g.ID, &g.UserID, &g.BatchID, &g.OrderID, &g.ValidFrom, &g.ValidTill, &g.Status, &g.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return g, nil
}

// Create inserts a grant, arbitrating on the partial unique index over
// active (user_id, batch_id) rows. ON CONFLICT DO NOTHING keeps a lost race
// from raising a server-side error, which would abort the surrounding
// transaction and take the order-status transition down with it; the caller
// sees ErrAlreadyExists and the transaction stays committable.
func (r *grantRepo) Create(ctx context.Context, tx repository.Tx, g *model.AccessGrant) error {
	const q = `
INSERT INTO access_grants (` + grantColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (user_id, batch_id) WHERE status = 'active' DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q, g.ID, g.UserID, g.BatchID, g.OrderID, g.ValidFrom, g.ValidTill, g.Status, g.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *grantRepo) FindActive(ctx context.Context, tx repository.Tx, userID, batchID string, now time.Time) (*model.AccessGrant, error) {
	q := `SELECT ` + grantColumns + ` FROM access_grants WHERE user_id=$1 AND batch_id=$2 AND status='active' AND valid_till > $3 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q, userID, batchID, now)
	if err != nil {
		return nil, err
	}
	return scanGrant(row)
}

func (r *grantRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.AccessGrant, error) {
	const q = `SELECT ` + grantColumns + ` FROM access_grants WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.AccessGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (r *grantRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	const q = `
UPDATE access_grants
   SET status = 'expired'
 WHERE id IN (
       SELECT id FROM access_grants
        WHERE status = 'active' AND valid_till <= $1
        LIMIT $2
 );`

	cmd, err := execSQL(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return cmd.RowsAffected(), nil
}
