package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrLockNotObtained = errors.New("inventory lock held by another process")

// RedisLocker serializes mutations across processes sharing one backend.
type RedisLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger logrus.FieldLogger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisLocker {
	return &RedisLocker{
		locker: redislock.New(client),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 100),
		logger: logger,
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := r.locker.Obtain(ctx, "lock:"+key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		// Released with a fresh context so a cancelled request still frees the lock.
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.WithError(err).WithField("key", key).Warn("release inventory lock")
		}
	}, nil
}
