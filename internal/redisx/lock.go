package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld means another operator is working on the same key.
var ErrLockHeld = errors.New("redisx: lock held by another operator")

// Locker hands out short-lived exclusive locks.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewLocker(rdb redis.Scripter, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Locker{client: redislock.New(rdb), ttl: ttl}
}

// Obtain takes LockPrefix+key without retrying.
func (l *Locker) Obtain(ctx context.Context, key string) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, LockPrefix+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
