package redisx

import "time"

const (
	// Idempotent create order: idem:order:create:{key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cached order read model: order:{order_id} -> order JSON
	KeyOrder = "order:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLIdemPending = 30 * time.Second
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
