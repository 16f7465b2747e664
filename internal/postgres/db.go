// Package postgres stores balances, the transaction log and finished game
// results in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// New connects to dsn and verifies the connection
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close releases every pooled connection
func (db *DB) Close() {
	db.Pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS balances (
	user_id    TEXT PRIMARY KEY,
	balance    BIGINT NOT NULL CHECK (balance >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger_transactions (
	id         BIGSERIAL PRIMARY KEY,
	user_id    TEXT NOT NULL,
	amount     BIGINT NOT NULL,
	kind       TEXT NOT NULL,
	note       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS ledger_transactions_user_idx ON ledger_transactions (user_id, created_at);

CREATE TABLE IF NOT EXISTS game_results (
	session_id   TEXT PRIMARY KEY,
	room         TEXT NOT NULL,
	variant      TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	total_stakes BIGINT NOT NULL,
	total_payout BIGINT NOT NULL,
	stakes       JSONB NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS game_results_room_idx ON game_results (room, ended_at DESC);
`

// Migrate creates the tables used by Ledger and ResultStore
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
