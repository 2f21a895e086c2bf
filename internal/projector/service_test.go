package projector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	seen      map[string]bool
	forgotten []string
}

func (d *memDedup) First(_ context.Context, id string) (bool, error) {
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	d.forgotten = append(d.forgotten, id)
	return nil
}

type fakeCache struct {
	invalidated []int64
	err         error
}

func (c *fakeCache) Invalidate(_ context.Context, id int64) error {
	if c.err != nil {
		return c.err
	}
	c.invalidated = append(c.invalidated, id)
	return nil
}

func newService(t *testing.T) (*Service, *memDedup, *fakeCache, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	d := &memDedup{seen: map[string]bool{}}
	c := &fakeCache{}
	return &Service{Dedup: d, Cache: c, Log: logrus.NewEntry(logger)}, d, c, hook
}

func message(t *testing.T, id, eventType, orderID string, payload any) kafkago.Message {
	t.Helper()
	p, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := json.Marshal(orders.Envelope{
		EventID:       id,
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: orderID,
		Payload:       p,
	})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(orderID), Value: b}
}

func TestHandleInvalidatesOnce(t *testing.T) {
	svc, _, cache, _ := newService(t)
	ctx := context.Background()
	m := message(t, "ev-1", orders.EventOrderStatusChanged, "12",
		orders.OrderStatusChangedPayload{OrderID: 12, From: "UNCONFIRMED", To: "CONFIRMED"})

	require.NoError(t, svc.Handle(ctx, m))
	require.NoError(t, svc.Handle(ctx, m))
	assert.Equal(t, []int64{12}, cache.invalidated)
}

func TestHandleAllOrderEvents(t *testing.T) {
	svc, _, cache, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Handle(ctx, message(t, "a", orders.EventOrderCreated, "1",
		orders.OrderCreatedPayload{OrderID: 1, Status: "UNCONFIRMED"})))
	require.NoError(t, svc.Handle(ctx, message(t, "b", orders.EventOpinionAdded, "2",
		orders.OpinionAddedPayload{OrderID: 2, Rating: 4})))
	require.NoError(t, svc.Handle(ctx, message(t, "c", "SomethingElse", "3", map[string]string{})))

	assert.Equal(t, []int64{1, 2}, cache.invalidated)
}

func TestHandleDropsPoisonMessages(t *testing.T) {
	svc, _, cache, hook := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Handle(ctx, kafkago.Message{Value: []byte("{")}))
	require.NoError(t, svc.Handle(ctx, message(t, "x", orders.EventOrderCreated, "not-a-number", struct{}{})))

	assert.Empty(t, cache.invalidated)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestHandleFailureForgetsEvent(t *testing.T) {
	svc, dedup, cache, _ := newService(t)
	ctx := context.Background()
	cache.err = errors.New("redis down")

	m := message(t, "ev-9", orders.EventOpinionAdded, "9", orders.OpinionAddedPayload{OrderID: 9, Rating: 2})
	require.Error(t, svc.Handle(ctx, m))
	assert.Equal(t, []string{"ev-9"}, dedup.forgotten)

	cache.err = nil
	require.NoError(t, svc.Handle(ctx, m))
	assert.Equal(t, []int64{9}, cache.invalidated)
}
