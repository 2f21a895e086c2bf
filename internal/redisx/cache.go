package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// OrderCache is a cache-aside read model for single orders. Writers
// invalidate; readers fill on miss. Concurrent misses for one order share a
// single load.
type OrderCache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	stats Stats
}

type Stats struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
	Errors uint64 `json:"errors"`
}

func NewOrderCache(rdb *redis.Client, ttl time.Duration) *OrderCache {
	if ttl <= 0 {
		ttl = TTLOrderCache
	}
	return &OrderCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached order or calls load and caches its result. Redis
// failures degrade to calling load.
func (c *OrderCache) Get(ctx context.Context, id int64, load func(context.Context) (orders.Order, error)) (orders.Order, error) {
	key := fmt.Sprintf(KeyOrder, id)

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var o orders.Order
		if jerr := json.Unmarshal(data, &o); jerr == nil {
			atomic.AddUint64(&c.stats.Hits, 1)
			return o, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
	} else if !errors.Is(err, redis.Nil) {
		atomic.AddUint64(&c.stats.Errors, 1)
	}
	atomic.AddUint64(&c.stats.Misses, 1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		o, err := load(ctx)
		if err != nil {
			return orders.Order{}, err
		}
		if b, err := json.Marshal(o); err == nil {
			if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
				atomic.AddUint64(&c.stats.Errors, 1)
			}
		}
		return o, nil
	})
	if err != nil {
		return orders.Order{}, err
	}
	return v.(orders.Order), nil
}

func (c *OrderCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, fmt.Sprintf(KeyOrder, id)).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("redis: invalidate order %d: %w", id, err)
	}
	return nil
}

func (c *OrderCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadUint64(&c.stats.Hits),
		Misses: atomic.LoadUint64(&c.stats.Misses),
		Errors: atomic.LoadUint64(&c.stats.Errors),
	}
}

// ErrInProgress means another request with the same idempotency key is
// still being processed.
var ErrInProgress = errors.New("request with this idempotency key is in progress")

// ErrKeyReused means the idempotency key was first used for a different
// request.
var ErrKeyReused = errors.New("idempotency key was already used for a different request")

const idemPending = "pending"

// Idempotency makes POST /orders safe to retry under an Idempotency-Key. The
// stored value is "<state>:<fingerprint>" where state is "pending" or the
// created order id.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb}
}

// Begin claims key for the request identified by fingerprint. It returns
// (0, nil) when the caller owns the key and must call Complete or Abort, the
// stored order id when an identical request already finished, ErrInProgress,
// or ErrKeyReused when the key belongs to another request.
func (i *Idempotency) Begin(ctx context.Context, key, fingerprint string) (int64, error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	ok, err := i.rdb.SetNX(ctx, k, idemPending+":"+fingerprint, TTLIdemPending).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: claim idempotency key: %w", err)
	}
	if ok {
		return 0, nil
	}

	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; try once more
		return i.Begin(ctx, key, fingerprint)
	}
	if err != nil {
		return 0, fmt.Errorf("redis: read idempotency key: %w", err)
	}

	state, stored, found := strings.Cut(v, ":")
	if !found {
		return 0, fmt.Errorf("redis: idempotency key holds %q", v)
	}
	if stored != fingerprint {
		return 0, ErrKeyReused
	}
	if state == idemPending {
		return 0, ErrInProgress
	}
	id, err := strconv.ParseInt(state, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: idempotency key holds %q: %w", v, err)
	}
	return id, nil
}

func (i *Idempotency) Complete(ctx context.Context, key, fingerprint string, orderID int64) error {
	k := fmt.Sprintf(KeyIdemOrderCreate, key)
	return i.rdb.Set(ctx, k, strconv.FormatInt(orderID, 10)+":"+fingerprint, TTLIdempotency).Err()
}

// Abort releases key so the request can be retried.
func (i *Idempotency) Abort(ctx context.Context, key string) error {
	return i.rdb.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Err()
}
