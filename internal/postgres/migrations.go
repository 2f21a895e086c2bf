package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations run in order on every start; each statement is idempotent.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id   BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL,
		unit_price  NUMERIC(12,2) NOT NULL CHECK (unit_price > 0),
		weight      DOUBLE PRECISION NOT NULL CHECK (weight > 0),
		category_id BIGINT NOT NULL REFERENCES categories(id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_status (
		id   BIGINT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                BIGSERIAL PRIMARY KEY,
		username          TEXT NOT NULL,
		email             TEXT NOT NULL,
		phone_number      TEXT NOT NULL,
		confirmation_date TIMESTAMPTZ,
		status_id         BIGINT NOT NULL REFERENCES order_status(id)
	)`,
	`CREATE INDEX IF NOT EXISTS orders_status_idx ON orders(status_id)`,
	`CREATE TABLE IF NOT EXISTS order_line_items (
		id         BIGSERIAL PRIMARY KEY,
		order_id   BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT NOT NULL REFERENCES products(id),
		amount     INTEGER NOT NULL CHECK (amount > 0),
		unit_price NUMERIC(12,2) NOT NULL CHECK (unit_price >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS order_line_items_order_idx ON order_line_items(order_id)`,
	`CREATE TABLE IF NOT EXISTS opinions (
		id           BIGSERIAL PRIMARY KEY,
		order_id     BIGINT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
		rating       INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		content      TEXT NOT NULL,
		opinion_date TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		login         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('CUSTOMER', 'EMPLOYEE'))
	)`,
}

// Apply creates the schema. db is usually stdlib.OpenDBFromPool(pool).
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: apply migration %d: %w", i+1, err)
		}
	}
	return nil
}
