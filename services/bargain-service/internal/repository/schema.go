package repository

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS listings (
		animal_id       TEXT PRIMARY KEY,
		farmer_id       TEXT NOT NULL,
		price           NUMERIC(14, 2) NOT NULL CHECK (price > 0),
		status          TEXT NOT NULL DEFAULT 'available',
		sold_session_id TEXT,
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bargain_sessions (
		id             TEXT PRIMARY KEY,
		animal_id      TEXT NOT NULL REFERENCES listings (animal_id),
		buyer_id       TEXT NOT NULL,
		farmer_id      TEXT NOT NULL,
		original_price NUMERIC(14, 2) NOT NULL,
		current_offer  NUMERIC(14, 2) NOT NULL,
		final_price    NUMERIC(14, 2),
		last_offer_by  TEXT NOT NULL,
		rounds         INT NOT NULL DEFAULT 0,
		status         TEXT NOT NULL,
		order_id       TEXT,
		version        INT NOT NULL DEFAULT 1,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL,
		CHECK ((final_price IS NOT NULL) = (status IN ('accepted', 'completed'))),
		CHECK (order_id IS NULL OR status IN ('accepted', 'completed'))
	)`,
	`CREATE INDEX IF NOT EXISTS bargain_sessions_buyer_idx ON bargain_sessions (buyer_id, updated_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bargain_sessions_farmer_idx ON bargain_sessions (farmer_id, updated_at DESC)`,
	`CREATE TABLE IF NOT EXISTS bargain_messages (
		seq         BIGSERIAL PRIMARY KEY,
		id          TEXT NOT NULL UNIQUE,
		session_id  TEXT NOT NULL REFERENCES bargain_sessions (id) ON DELETE CASCADE,
		sender_id   TEXT NOT NULL,
		sender_role TEXT NOT NULL,
		kind        TEXT NOT NULL,
		amount      NUMERIC(14, 2),
		content     TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bargain_messages_session_idx ON bargain_messages (session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS bargain_orders (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE REFERENCES bargain_sessions (id),
		animal_id  TEXT NOT NULL,
		buyer_id   TEXT NOT NULL,
		farmer_id  TEXT NOT NULL,
		amount     NUMERIC(14, 2) NOT NULL,
		state      TEXT NOT NULL,
		version    INT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bargain_orders_state_idx ON bargain_orders (state)`,
}

// Migrate creates the tables if they do not exist yet. Statements are
// idempotent, so it runs on every service start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, q := range schema {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
