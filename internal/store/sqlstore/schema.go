package sqlstore

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		total_pieces BIGINT NOT NULL CHECK (total_pieces >= 0),
		cost_price_per_piece NUMERIC(5,2) NOT NULL,
		selling_price_per_piece NUMERIC(5,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_product_date ON inventory (product_id, date)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		pieces_sold BIGINT NOT NULL CHECK (pieces_sold >= 0),
		UNIQUE (product_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS expenditures (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		date DATE NOT NULL,
		type VARCHAR(100) NOT NULL,
		amount_spent NUMERIC(8,2) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenditures_product_date ON expenditures (product_id, date)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// SQLite keeps dates and timestamps as sortable TEXT and money as TEXT so
// decimals round-trip without float conversion.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		total_pieces INTEGER NOT NULL CHECK (total_pieces >= 0),
		cost_price_per_piece TEXT NOT NULL,
		selling_price_per_piece TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_product_date ON inventory (product_id, date)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		pieces_sold INTEGER NOT NULL CHECK (pieces_sold >= 0),
		UNIQUE (product_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS expenditures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_spent TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenditures_product_date ON expenditures (product_id, date)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_username TEXT NOT NULL,
		actor_role TEXT NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		detail TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS app_users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// Migrate creates missing tables and indexes inside a single transaction.
func (s *Store) Migrate(ctx context.Context) error {
	statements := postgresSchema
	if s.dialect == dialectSQLite {
		statements = sqliteSchema
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return tx.Commit()
}
