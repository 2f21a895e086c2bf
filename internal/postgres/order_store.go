package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var _ orders.Store = (*Store)(nil)

const orderColumns = `id, username, email, phone_number, confirmation_date, status_id`

func scanOrderHeader(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	var statusID int64
	if err := row.Scan(&o.ID, &o.Username, &o.Email, &o.PhoneNumber, &o.ConfirmationDate, &statusID); err != nil {
		return orders.Order{}, err
	}
	st, ok := orders.ParseStatus(statusID)
	if !ok {
		return orders.Order{}, fmt.Errorf("order %d: unknown status id %d", o.ID, statusID)
	}
	o.Status = st
	o.LineItems = []orders.LineItem{}
	return o, nil
}

func (s *Store) Order(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrderHeader(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order with id = %d not found", id)
	}
	list := []orders.Order{o}
	if err := s.attach(ctx, list); err != nil {
		return orders.Order{}, err
	}
	return list[0], nil
}

func (s *Store) Orders(ctx context.Context) ([]orders.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY id`)
}

func (s *Store) OrdersByStatus(ctx context.Context, st orders.Status) ([]orders.Order, error) {
	return s.listOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE status_id=$1 ORDER BY id`, st.ID())
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]orders.Order, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrderHeader(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attach(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attach loads line items (joined with their current product) and opinions
// for every order in list with two queries.
func (s *Store) attach(ctx context.Context, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := s.DB.Query(ctx, `
		SELECT li.id, li.order_id, li.amount, li.unit_price::text,
		       `+productColumns+`
		FROM order_line_items li
		JOIN products p ON p.id = li.product_id
		JOIN categories c ON c.id = p.category_id
		WHERE li.order_id = ANY($1)
		ORDER BY li.id`, ids)
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	for rows.Next() {
		var li orders.LineItem
		var orderID int64
		var snap, price string
		p := &li.Product
		if err := rows.Scan(&li.ID, &orderID, &li.Amount, &snap,
			&p.ID, &p.Name, &p.Description, &price, &p.Weight, &p.Category.ID, &p.Category.Name); err != nil {
			rows.Close()
			return fmt.Errorf("load line items: %w", err)
		}
		if li.UnitPrice, err = decimal.NewFromString(snap); err != nil {
			rows.Close()
			return fmt.Errorf("line item %d: parse price %q: %w", li.ID, snap, err)
		}
		if p.UnitPrice, err = decimal.NewFromString(price); err != nil {
			rows.Close()
			return fmt.Errorf("product %d: parse price %q: %w", p.ID, price, err)
		}
		o := &list[index[orderID]]
		o.LineItems = append(o.LineItems, li)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load line items: %w", err)
	}

	rows, err = s.DB.Query(ctx, `
		SELECT id, order_id, rating, content, opinion_date
		FROM opinions WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load opinions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var op orders.Opinion
		if err := rows.Scan(&op.ID, &op.OrderID, &op.Rating, &op.Content, &op.OpinionDate); err != nil {
			return fmt.Errorf("load opinions: %w", err)
		}
		list[index[op.OrderID]].Opinion = &op
	}
	return rows.Err()
}

// WithinTx runs fn in a read-committed transaction. Rollback after a
// successful Commit is a no-op.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &orderTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	o, err := scanOrderHeader(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return orders.Order{}, notFound(err, "order with id = %d not found", id)
	}
	return o, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders(username, email, phone_number, confirmation_date, status_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		o.Username, o.Email, o.PhoneNumber, o.ConfirmationDate, o.Status.ID(),
	).Scan(&o.ID)
}

func (t *orderTx) InsertLineItem(ctx context.Context, orderID int64, li *orders.LineItem) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO order_line_items(order_id, product_id, amount, unit_price)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING id`,
		orderID, li.Product.ID, li.Amount, li.UnitPrice.String(),
	).Scan(&li.ID)
	if err != nil && pgCode(err) == foreignKeyViolation {
		return apperr.NotFound("product id=%d not found", li.Product.ID)
	}
	return err
}

func (t *orderTx) UpdateStatus(ctx context.Context, id int64, st orders.Status, confirmedAt *time.Time) error {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status_id=$2, confirmation_date=$3 WHERE id=$1`,
		id, st.ID(), confirmedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("order with id = %d not found", id)
	}
	return nil
}

func (t *orderTx) OpinionByOrder(ctx context.Context, orderID int64) (*orders.Opinion, error) {
	var op orders.Opinion
	err := t.tx.QueryRow(ctx, `
		SELECT id, order_id, rating, content, opinion_date
		FROM opinions WHERE order_id=$1`, orderID).
		Scan(&op.ID, &op.OrderID, &op.Rating, &op.Content, &op.OpinionDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (t *orderTx) InsertOpinion(ctx context.Context, op *orders.Opinion) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO opinions(order_id, rating, content, opinion_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		op.OrderID, op.Rating, op.Content, op.OpinionDate,
	).Scan(&op.ID)
	if err != nil && pgCode(err) == uniqueViolation {
		return apperr.Conflict("opinion for order %d already exists", op.OrderID)
	}
	return err
}
