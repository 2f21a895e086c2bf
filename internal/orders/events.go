package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOpinionAdded       = "OpinionAdded"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID int64           `json:"product_id"`
	Amount    int             `json:"amount"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID  int64           `json:"order_id"`
	Username string          `json:"username"`
	Status   string          `json:"status"`
	Items    []ItemPrice     `json:"items"`
	Total    decimal.Decimal `json:"total"`
}

type OrderStatusChangedPayload struct {
	OrderID          int64      `json:"order_id"`
	From             string     `json:"from"`
	To               string     `json:"to"`
	ConfirmationDate *time.Time `json:"confirmation_date,omitempty"`
}

type OpinionAddedPayload struct {
	OrderID   int64 `json:"order_id"`
	OpinionID int64 `json:"opinion_id"`
	Rating    int   `json:"rating"`
}

func newEnvelope(eventType, producer string, orderID int64, payload any, now time.Time) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: string(PartitionKey(orderID)),
		Payload:       b,
	}, nil
}

func orderCreatedPayload(o Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, ItemPrice{ProductID: li.Product.ID, Amount: li.Amount, UnitPrice: li.UnitPrice})
	}
	return OrderCreatedPayload{
		OrderID:  o.ID,
		Username: o.Username,
		Status:   o.Status.String(),
		Items:    items,
		Total:    o.Total(),
	}
}
