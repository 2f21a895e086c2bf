package orders

import (
	"context"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/catalog"
)

// Store is the persistence port of the order core. Reads return fully
// materialized orders (status, line items with products, opinion). Missing
// rows are reported with an error of kind apperr.ErrNotFound.
type Store interface {
	Order(ctx context.Context, id int64) (Order, error)
	Orders(ctx context.Context) ([]Order, error)
	OrdersByStatus(ctx context.Context, s Status) ([]Order, error)

	// WithinTx runs fn in a single unit of work. The work is committed only
	// when fn returns nil; otherwise every write made through tx is discarded.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the write side of a unit of work.
type Tx interface {
	// LockOrder loads the order header (status, confirmation date, no line
	// items) and holds it exclusively until the unit of work ends.
	LockOrder(ctx context.Context, id int64) (Order, error)
	// InsertOrder stores the order header and assigns o.ID.
	InsertOrder(ctx context.Context, o *Order) error
	// InsertLineItem stores one line item of orderID and assigns li.ID.
	InsertLineItem(ctx context.Context, orderID int64, li *LineItem) error
	UpdateStatus(ctx context.Context, id int64, s Status, confirmedAt *time.Time) error
	// OpinionByOrder returns nil when the order has no opinion yet.
	OpinionByOrder(ctx context.Context, orderID int64) (*Opinion, error)
	InsertOpinion(ctx context.Context, op *Opinion) error
}

// Catalog is the read-only view of the product catalog.
type Catalog interface {
	FindProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// EventPublisher receives domain events after their unit of work committed.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}
