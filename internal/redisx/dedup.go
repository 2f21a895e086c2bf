package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Dedup remembers processed event ids per consuming service.
type Dedup struct {
	rdb     *redis.Client
	service string
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service}
}

// First reports whether eventID is seen for the first time.
func (d *Dedup) First(ctx context.Context, eventID string) (bool, error) {
	return MarkOnce(ctx, d.rdb, fmt.Sprintf(KeyDedup, d.service, eventID), TTLDedup)
}

// Forget drops eventID so a redelivery is processed again.
func (d *Dedup) Forget(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, eventID)).Err()
}
