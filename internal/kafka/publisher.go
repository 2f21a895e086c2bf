package kafka

import (
	"context"
	"strconv"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// Sink is where encoded events go; *Producer is the production one.
type Sink interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// Publisher adapts a Sink to orders.EventPublisher.
type Publisher struct {
	sink Sink
}

var _ orders.EventPublisher = (*Publisher)(nil)

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

func (p *Publisher) Publish(ctx context.Context, topic string, key []byte, env orders.Envelope) error {
	if env.TraceID == "" {
		env.TraceID = middleware.GetReqID(ctx)
	}
	b, err := Marshal(env)
	if err != nil {
		return err
	}
	return p.sink.Publish(ctx, topic, key, b,
		kafka.Header{Key: HeaderEventType, Value: []byte(env.EventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
