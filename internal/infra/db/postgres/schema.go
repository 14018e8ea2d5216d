package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

// InitSchema creates the purchase-core tables and indexes. It runs once at
// startup, before any traffic is served; nothing in the request path checks
// or initializes the schema lazily.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id            UUID PRIMARY KEY,
			exam_id       UUID NOT NULL,
			slug          TEXT NOT NULL UNIQUE,
			title         TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			price         NUMERIC(10,2) NOT NULL DEFAULT 0,
			expiry_months INT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,

		`CREATE TABLE IF NOT EXISTS orders (
			id                  UUID PRIMARY KEY,
			user_id             UUID NOT NULL,
			batch_id            UUID NOT NULL,
			amount              BIGINT NOT NULL,
			currency            TEXT NOT NULL,
			provider            TEXT NOT NULL,
			provider_order_id   TEXT NOT NULL,
			provider_payment_id TEXT NOT NULL DEFAULT '',
			receipt             TEXT NOT NULL DEFAULT '',
			status              TEXT NOT NULL,
			created_at          TIMESTAMPTZ NOT NULL,
			updated_at          TIMESTAMPTZ NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_provider_order_id ON orders (provider_order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_created_at ON orders (status, created_at);`,

		`CREATE TABLE IF NOT EXISTS access_grants (
			id         UUID PRIMARY KEY,
			user_id    UUID NOT NULL,
			batch_id   UUID NOT NULL,
			order_id   UUID,
			valid_from TIMESTAMPTZ NOT NULL,
			valid_till TIMESTAMPTZ NOT NULL,
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);`,
		// The active-grant uniqueness gate: a duplicate insert surfaces as a
		// unique violation instead of a second grant.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_access_grants_active ON access_grants (user_id, batch_id) WHERE status = 'active';`,
		`CREATE INDEX IF NOT EXISTS idx_access_grants_valid_till ON access_grants (valid_till) WHERE status = 'active';`,
	}

	for _, s := range stmts {
		if _, err := pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
