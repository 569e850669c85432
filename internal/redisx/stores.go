package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/router"
	"github.com/economato/go-order-desk/internal/session"
)

// BoardCache keeps the last order list for ttl.
type BoardCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewBoardCache(rdb redis.Cmdable, ttl time.Duration) *BoardCache {
	return &BoardCache{rdb: rdb, ttl: ttl}
}

func (c *BoardCache) Load(ctx context.Context) ([]orders.Order, bool, error) {
	b, err := c.rdb.Get(ctx, KeyBoardOrders).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var list []orders.Order
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, false, fmt.Errorf("decode cached board: %w", err)
	}
	return list, true, nil
}

func (c *BoardCache) Store(ctx context.Context, list []orders.Order) error {
	if c.ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, KeyBoardOrders, b, c.ttl).Err()
}

func (c *BoardCache) Invalidate(ctx context.Context) error {
	return c.rdb.Del(ctx, KeyBoardOrders).Err()
}

// Sessions stores operator tokens under session:{id}.
type Sessions struct{ rdb redis.Cmdable }

func NewSessions(rdb redis.Cmdable) *Sessions { return &Sessions{rdb: rdb} }

func (s *Sessions) Save(ctx context.Context, id, token string, ttl time.Duration) error {
	return s.rdb.Set(ctx, fmt.Sprintf(KeySession, id), token, ttl).Err()
}

func (s *Sessions) Load(ctx context.Context, id string) (string, error) {
	t, err := s.rdb.Get(ctx, fmt.Sprintf(KeySession, id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", session.ErrNoSession
	}
	return t, err
}

func (s *Sessions) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(KeySession, id)).Err()
}

// RouteStore returns the router store of one session.
func RouteStore(rdb redis.Cmdable, sessionID string) router.Store {
	return routeStore{rdb: rdb, key: fmt.Sprintf(KeyRoute, sessionID, router.StoreKey)}
}

type routeStore struct {
	rdb redis.Cmdable
	key string
}

func (r routeStore) Load(ctx context.Context) (string, error) {
	v, err := r.rdb.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (r routeStore) Save(ctx context.Context, route string) error {
	return r.rdb.Set(ctx, r.key, route, TTLRoute).Err()
}

// Idempotency maps client keys to the order they created.
type Idempotency struct{ rdb redis.Cmdable }

func NewIdempotency(rdb redis.Cmdable) *Idempotency { return &Idempotency{rdb: rdb} }

func (i *Idempotency) Lookup(ctx context.Context, key string) (int, bool, error) {
	v, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("idempotency %s: %w", key, err)
	}
	return id, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, key string, orderID int) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, key), orderID, TTLIdempotency).Err()
}

// Dedup reports whether an event id was seen before, marking it seen.
type Dedup struct {
	rdb     redis.Cmdable
	service string
}

func NewDedup(rdb redis.Cmdable, service string) *Dedup { return &Dedup{rdb: rdb, service: service} }

func (d *Dedup) Seen(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, eventID), 1, TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
