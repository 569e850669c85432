package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{key} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Session token: session:{id} -> jwt
	KeySession = "session:%s"

	// Last route per session: route:{id}:spa_current_route -> route name
	KeyRoute = "route:%s:%s"

	// Board order list cache
	KeyBoardOrders = "board:orders"

	// Dedup of relayed envelopes: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// prefix for every redislock key
	LockPrefix = "lock:"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLRoute       = 30 * 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
