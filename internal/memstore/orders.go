package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

func (s *Store) Order(_ context.Context, id int64) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order with id = %d not found", id)
	}
	return s.materializeLocked(row), nil
}

func (s *Store) Orders(_ context.Context) ([]orders.Order, error) {
	return s.selectOrders(func(orderRow) bool { return true }), nil
}

func (s *Store) OrdersByStatus(_ context.Context, st orders.Status) ([]orders.Order, error) {
	return s.selectOrders(func(r orderRow) bool { return r.Status == st }), nil
}

func (s *Store) selectOrders(keep func(orderRow) bool) []orders.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []orders.Order{}
	for _, r := range s.orders {
		if keep(r) {
			out = append(out, s.materializeLocked(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) materializeLocked(r orderRow) orders.Order {
	o := orders.Order{
		ID:               r.ID,
		Username:         r.Username,
		Email:            r.Email,
		PhoneNumber:      r.PhoneNumber,
		ConfirmationDate: copyTime(r.ConfirmationDate),
		Status:           r.Status,
		LineItems:        []orders.LineItem{},
	}
	for _, it := range s.items[r.ID] {
		o.LineItems = append(o.LineItems, orders.LineItem{
			ID:        it.ID,
			Product:   s.products[it.ProductID],
			Amount:    it.Amount,
			UnitPrice: it.UnitPrice,
		})
	}
	if op, ok := s.opinions[r.ID]; ok {
		o.Opinion = &op
	}
	return o
}

// WithinTx stages every write of fn and applies them together once fn
// succeeds. Units of work are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{
		s:        s,
		orders:   map[int64]orderRow{},
		items:    map[int64][]lineItemRow{},
		opinions: map[int64]orders.Opinion{},
	}
	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range t.orders {
		s.orders[id] = r
	}
	for id, its := range t.items {
		s.items[id] = append(s.items[id], its...)
	}
	for id, op := range t.opinions {
		s.opinions[id] = op
	}
	return nil
}

type tx struct {
	s        *Store
	orders   map[int64]orderRow
	items    map[int64][]lineItemRow
	opinions map[int64]orders.Opinion
}

func (t *tx) fail(op string) error {
	if t.s.FailWrite == nil {
		return nil
	}
	return t.s.FailWrite(op)
}

func (t *tx) LockOrder(_ context.Context, id int64) (orders.Order, error) {
	if r, ok := t.orders[id]; ok {
		return headerOf(r), nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	r, ok := t.s.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order with id = %d not found", id)
	}
	return headerOf(r), nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if err := t.fail("insert_order"); err != nil {
		return err
	}
	t.s.mu.Lock()
	o.ID = t.s.nextIDLocked("order")
	t.s.mu.Unlock()

	t.orders[o.ID] = orderRow{
		ID:               o.ID,
		Username:         o.Username,
		Email:            o.Email,
		PhoneNumber:      o.PhoneNumber,
		ConfirmationDate: copyTime(o.ConfirmationDate),
		Status:           o.Status,
	}
	return nil
}

func (t *tx) InsertLineItem(_ context.Context, orderID int64, li *orders.LineItem) error {
	if err := t.fail("insert_line_item"); err != nil {
		return err
	}
	if _, ok := t.orders[orderID]; !ok {
		return apperr.NotFound("order with id = %d not found", orderID)
	}
	t.s.mu.Lock()
	li.ID = t.s.nextIDLocked("line_item")
	t.s.mu.Unlock()

	t.items[orderID] = append(t.items[orderID], lineItemRow{
		ID:        li.ID,
		ProductID: li.Product.ID,
		Amount:    li.Amount,
		UnitPrice: li.UnitPrice,
	})
	return nil
}

func (t *tx) UpdateStatus(ctx context.Context, id int64, st orders.Status, confirmedAt *time.Time) error {
	if err := t.fail("update_status"); err != nil {
		return err
	}
	r, ok := t.orders[id]
	if !ok {
		t.s.mu.RLock()
		r, ok = t.s.orders[id]
		t.s.mu.RUnlock()
		if !ok {
			return apperr.NotFound("order with id = %d not found", id)
		}
	}
	r.Status = st
	r.ConfirmationDate = copyTime(confirmedAt)
	t.orders[id] = r
	return nil
}

func (t *tx) OpinionByOrder(_ context.Context, orderID int64) (*orders.Opinion, error) {
	if op, ok := t.opinions[orderID]; ok {
		return &op, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	if op, ok := t.s.opinions[orderID]; ok {
		return &op, nil
	}
	return nil, nil
}

func (t *tx) InsertOpinion(ctx context.Context, op *orders.Opinion) error {
	if err := t.fail("insert_opinion"); err != nil {
		return err
	}
	existing, _ := t.OpinionByOrder(ctx, op.OrderID)
	if existing != nil {
		return apperr.Conflict("opinion for order %d already exists", op.OrderID)
	}
	t.s.mu.Lock()
	op.ID = t.s.nextIDLocked("opinion")
	t.s.mu.Unlock()

	t.opinions[op.OrderID] = *op
	return nil
}

func headerOf(r orderRow) orders.Order {
	return orders.Order{
		ID:               r.ID,
		Username:         r.Username,
		Email:            r.Email,
		PhoneNumber:      r.PhoneNumber,
		ConfirmationDate: copyTime(r.ConfirmationDate),
		Status:           r.Status,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
