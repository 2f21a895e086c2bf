package orders

import (
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	Email            string     `json:"email"`
	PhoneNumber      string     `json:"phone_number"`
	ConfirmationDate *time.Time `json:"confirmation_date"`
	Status           Status     `json:"status"`
	LineItems        []LineItem `json:"line_items"`
	Opinion          *Opinion   `json:"opinion,omitempty"`
}

func (o Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.LineItems {
		total = total.Add(li.Subtotal())
	}
	return total
}

// LineItem is one product entry of an order. UnitPrice is the price captured
// when the order was placed, not the product's current price.
type LineItem struct {
	ID        int64           `json:"id"`
	Product   catalog.Product `json:"product"`
	Amount    int             `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Amount)))
}

type Opinion struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	Rating      int       `json:"rating"`
	Content     string    `json:"content"`
	OpinionDate time.Time `json:"opinion_date"`
}

// Caller is the authenticated identity attached to a request.
type Caller struct {
	UserID int64
	Login  string
	Role   string
}

type CreateOrderInput struct {
	Username    string
	Email       string
	PhoneNumber string
	// StatusID defaults to UNCONFIRMED when nil.
	StatusID *int64
	Items    []ItemInput
}

type ItemInput struct {
	ProductID int64
	Amount    int
	// UnitPrice overrides the catalog price when set.
	UnitPrice *decimal.Decimal
}

type OpinionInput struct {
	Rating  int
	Content string
	// OpinionDate defaults to now; when set it must lie within a week of now.
	OpinionDate *time.Time
}
