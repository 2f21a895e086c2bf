package postgres

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
)

// SeedStatuses inserts the status rows under their fixed ids and then checks
// that the table maps every id to the expected name. A mismatch means the
// table was filled by something else and the transition rules would key on
// the wrong rows, so startup must stop.
func (s *Store) SeedStatuses(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, st := range orders.AllStatuses() {
		batch.Queue(`INSERT INTO order_status(id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, st.ID(), st.String())
	}
	if err := s.DB.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: seed statuses: %w", err)
	}

	rows, err := s.DB.Query(ctx, `SELECT id, name FROM order_status`)
	if err != nil {
		return fmt.Errorf("postgres: read statuses: %w", err)
	}
	got := map[int64]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return fmt.Errorf("postgres: read statuses: %w", err)
		}
		got[id] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: read statuses: %w", err)
	}

	for _, st := range orders.AllStatuses() {
		if got[st.ID()] != st.String() {
			return fmt.Errorf("postgres: order_status id %d is %q, want %q", st.ID(), got[st.ID()], st.String())
		}
	}
	if len(got) != len(orders.AllStatuses()) {
		return fmt.Errorf("postgres: order_status has %d rows, want %d", len(got), len(orders.AllStatuses()))
	}
	return nil
}

// SeedCategories inserts every name that is not present yet.
func (s *Store) SeedCategories(ctx context.Context, names []string) error {
	batch := &pgx.Batch{}
	for _, n := range names {
		batch.Queue(`INSERT INTO categories(name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, n)
	}
	if err := s.DB.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres: seed categories: %w", err)
	}
	return nil
}
