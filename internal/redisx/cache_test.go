package redisx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := New(addr)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// uniqueID keeps parallel runs against a shared Redis apart.
func uniqueID() int64 {
	return int64(uuid.New().ID())
}

func TestOrderCacheFillsAndInvalidates(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	c := NewOrderCache(rdb, time.Minute)
	id := uniqueID()
	t.Cleanup(func() { _ = c.Invalidate(ctx, id) })

	var loads int32
	load := func(context.Context) (orders.Order, error) {
		atomic.AddInt32(&loads, 1)
		return orders.Order{ID: id, Username: "jan", Status: orders.StatusConfirmed}, nil
	}

	o, err := c.Get(ctx, id, load)
	require.NoError(t, err)
	assert.Equal(t, "jan", o.Username)

	o, err = c.Get(ctx, id, load)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, o.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&loads))

	require.NoError(t, c.Invalidate(ctx, id))
	_, err = c.Get(ctx, id, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(2), st.Misses)
}

func TestOrderCacheDoesNotCacheErrors(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	c := NewOrderCache(rdb, time.Minute)
	id := uniqueID()

	boom := errors.New("db down")
	_, err := c.Get(ctx, id, func(context.Context) (orders.Order, error) { return orders.Order{}, boom })
	require.ErrorIs(t, err, boom)

	n, err := rdb.Exists(ctx, fmt.Sprintf(KeyOrder, id)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIdempotency(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	idem := NewIdempotency(rdb)
	key := uuid.NewString()
	t.Cleanup(func() { _ = idem.Abort(ctx, key) })

	id, err := idem.Begin(ctx, key, "fp-a")
	require.NoError(t, err)
	assert.Zero(t, id)

	_, err = idem.Begin(ctx, key, "fp-a")
	require.ErrorIs(t, err, ErrInProgress)

	_, err = idem.Begin(ctx, key, "fp-b")
	require.ErrorIs(t, err, ErrKeyReused)

	require.NoError(t, idem.Complete(ctx, key, "fp-a", 42))
	id, err = idem.Begin(ctx, key, "fp-a")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	_, err = idem.Begin(ctx, key, "fp-b")
	require.ErrorIs(t, err, ErrKeyReused)

	require.NoError(t, idem.Abort(ctx, key))
	id, err = idem.Begin(ctx, key, "fp-b")
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestMarkOnce(t *testing.T) {
	rdb := testClient(t)
	ctx := context.Background()
	key := fmt.Sprintf(KeyDedup, "test", uuid.NewString())
	t.Cleanup(func() { rdb.Del(ctx, key) })

	var wg sync.WaitGroup
	var first int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := MarkOnce(ctx, rdb, key, time.Minute)
			if err == nil && ok {
				atomic.AddInt32(&first, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), first)
}
