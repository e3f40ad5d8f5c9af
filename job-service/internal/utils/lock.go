package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"handyman-app/job-service/internal/models"

	"github.com/bsm/redislock"
)

// RedisJobLocker holds a short per-job lock around a mutation.
type RedisJobLocker struct {
	locker *redislock.Client
	ttl    time.Duration
}

func NewRedisJobLocker(locker *redislock.Client, ttl time.Duration) *RedisJobLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisJobLocker{locker: locker, ttl: ttl}
}

// Lock returns models.ErrConflict when another request holds the job.
func (l *RedisJobLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, "lock:"+key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s is being modified by another request", models.ErrConflict, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}

// NoopLocker is used when no Redis is configured; the conditional writes in
// the store remain the only guard.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
