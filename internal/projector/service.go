// Package projector consumes order events and keeps the Redis read model of
// orders fresh.
package projector

import (
	"context"
	"fmt"
	"strconv"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/metrics"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Deduper remembers which event ids were already handled.
type Deduper interface {
	First(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Invalidator drops the cached copy of an order.
type Invalidator interface {
	Invalidate(ctx context.Context, orderID int64) error
}

type Service struct {
	Dedup Deduper
	Cache Invalidator
	Log   *logrus.Entry
}

// Handle is installed as the consumer handler. Every order event invalidates
// the cached order; a redelivered event is skipped.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// poison message: log and commit, a retry cannot fix it
		s.Log.WithField("offset", m.Offset).WithError(err).Error("drop undecodable event")
		metrics.RecordEvent("", "invalid")
		return nil
	}
	log := s.Log.WithFields(logrus.Fields{
		"event_id":   env.EventID,
		"event_type": env.EventType,
		"order_id":   env.CorrelationID,
		"trace_id":   env.TraceID,
	})

	orderID, err := strconv.ParseInt(env.CorrelationID, 10, 64)
	if err != nil {
		log.WithError(err).Error("drop event without order id")
		metrics.RecordEvent(env.EventType, "invalid")
		return nil
	}

	// 2) dedup by event id
	first, err := s.Dedup.First(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		metrics.RecordEvent(env.EventType, "duplicate")
		return nil
	}

	// 3) project
	if err := s.project(ctx, log, orderID, env); err != nil {
		_ = s.Dedup.Forget(ctx, env.EventID)
		metrics.RecordEvent(env.EventType, "error")
		return err
	}
	metrics.RecordEvent(env.EventType, "ok")
	return nil
}

func (s *Service) project(ctx context.Context, log *logrus.Entry, orderID int64, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"status": p.Status, "items": len(p.Items), "total": p.Total.String()}).
			Info("order created")
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"from": p.From, "to": p.To}).Info("order status changed")
	case orders.EventOpinionAdded:
		p, err := kafkax.UnwrapPayload[orders.OpinionAddedPayload](env.Payload)
		if err != nil {
			return err
		}
		log.WithField("rating", p.Rating).Info("opinion added")
	default:
		log.Debug("ignore unknown event type")
		return nil
	}
	return s.Cache.Invalidate(ctx, orderID)
}
