package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store      Store
	catalog    Catalog
	events     EventPublisher
	producer   string
	ownerCheck bool
	now        func() time.Time
	log        *logrus.Entry
}

type Option func(*Service)

// WithEvents publishes domain events after each successful write.
func WithEvents(p EventPublisher, producer string) Option {
	return func(s *Service) {
		s.events = p
		s.producer = producer
	}
}

// WithOwnershipCheck toggles the rule that only the order's owner may add
// an opinion to it. Enabled by default.
func WithOwnershipCheck(enabled bool) Option {
	return func(s *Service) { s.ownerCheck = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Service) { s.log = log }
}

func NewService(store Store, cat Catalog, opts ...Option) *Service {
	s := &Service{
		store:      store,
		catalog:    cat,
		ownerCheck: true,
		now:        time.Now,
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Statuses() []Status { return AllStatuses() }

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.store.Orders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.store.Order(ctx, id)
}

// ListOrdersByStatus returns no orders for an id outside the status set.
func (s *Service) ListOrdersByStatus(ctx context.Context, statusID int64) ([]Order, error) {
	st, ok := ParseStatus(statusID)
	if !ok {
		return []Order{}, nil
	}
	return s.store.OrdersByStatus(ctx, st)
}

// CreateOrder validates the request, snapshots the catalog prices and stores
// the order with all its line items in one unit of work.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (Order, error) {
	status, err := validateOrderHeader(in)
	if err != nil {
		return Order{}, err
	}

	items := make([]LineItem, 0, len(in.Items))
	for i, it := range in.Items {
		if err := validateItemShape(i, it); err != nil {
			return Order{}, err
		}
		p, err := s.catalog.FindProduct(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return Order{}, apperr.NotFound("product id=%d not found", it.ProductID)
			}
			return Order{}, fmt.Errorf("find product %d: %w", it.ProductID, err)
		}
		price := p.UnitPrice
		if it.UnitPrice != nil {
			price = *it.UnitPrice
		}
		items = append(items, LineItem{Product: p, Amount: it.Amount, UnitPrice: price})
	}

	o := Order{
		Username:    in.Username,
		Email:       in.Email,
		PhoneNumber: in.PhoneNumber,
		Status:      status,
		LineItems:   items,
	}
	if status == StatusConfirmed {
		now := s.now().UTC()
		o.ConfirmationDate = &now
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return err
		}
		for i := range o.LineItems {
			if err := tx.InsertLineItem(ctx, o.ID, &o.LineItems[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}

	s.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ID, orderCreatedPayload(o))
	return o, nil
}

// TransitionStatus moves an order along the transition table. Entering
// CONFIRMED stamps the confirmation date once.
func (s *Service) TransitionStatus(ctx context.Context, orderID, statusID int64) (Order, error) {
	var from, to Status
	var confirmedAt *time.Time

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		target, ok := ParseStatus(statusID)
		if !ok {
			return apperr.NotFound("status id=%d not found", statusID)
		}
		if !CanTransition(o.Status, target) {
			return apperr.InvalidTransition("cannot change status from %s to %s", o.Status, target)
		}

		confirmedAt = o.ConfirmationDate
		if target == StatusConfirmed && confirmedAt == nil {
			now := s.now().UTC()
			confirmedAt = &now
		}
		from, to = o.Status, target
		return tx.UpdateStatus(ctx, orderID, target, confirmedAt)
	})
	if err != nil {
		return Order{}, fmt.Errorf("transition order %d: %w", orderID, err)
	}

	s.publish(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
		OrderID:          orderID,
		From:             from.String(),
		To:               to.String(),
		ConfirmationDate: confirmedAt,
	})
	return s.store.Order(ctx, orderID)
}

// AddOpinion attaches the single opinion an eligible order may carry.
func (s *Service) AddOpinion(ctx context.Context, orderID int64, caller Caller, in OpinionInput) (Opinion, error) {
	var created Opinion
	now := s.now()

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if s.ownerCheck && caller.Login != o.Username {
			return apperr.Forbidden("only the owner of order %d can add an opinion", orderID)
		}
		if !o.Status.AcceptsOpinion() {
			return apperr.Conflict("cannot add an opinion to an order with status %s", o.Status)
		}
		existing, err := tx.OpinionByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &OpinionExistsError{Opinion: *existing}
		}
		if err := validateOpinion(in, now); err != nil {
			return err
		}

		created = Opinion{
			OrderID:     orderID,
			Rating:      in.Rating,
			Content:     in.Content,
			OpinionDate: now.UTC(),
		}
		if in.OpinionDate != nil {
			created.OpinionDate = in.OpinionDate.UTC()
		}
		return tx.InsertOpinion(ctx, &created)
	})
	if err != nil {
		var exists *OpinionExistsError
		if !errors.As(err, &exists) && errors.Is(err, apperr.ErrConflict) {
			// lost a race against a concurrent insert; surface the winner
			if o, rerr := s.store.Order(ctx, orderID); rerr == nil && o.Opinion != nil {
				err = &OpinionExistsError{Opinion: *o.Opinion}
			}
		}
		return Opinion{}, fmt.Errorf("add opinion to order %d: %w", orderID, err)
	}

	s.publish(ctx, TopicOpinionAdded, EventOpinionAdded, orderID, OpinionAddedPayload{
		OrderID:   orderID,
		OpinionID: created.ID,
		Rating:    created.Rating,
	})
	return created, nil
}

// publish is best effort: the write already committed, so a failed publish
// is logged and never reported to the caller.
func (s *Service) publish(ctx context.Context, topic, eventType string, orderID int64, payload any) {
	if s.events == nil {
		return
	}
	env, err := newEnvelope(eventType, s.producer, orderID, payload, s.now())
	if err == nil {
		err = s.events.Publish(ctx, topic, PartitionKey(orderID), env)
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"order_id": orderID, "event_type": eventType}).
			WithError(err).Warn("publish event failed")
	}
}
