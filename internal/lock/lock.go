// Package lock provides the short-lived idempotency lock taken around each
// payment reconciliation, keyed by the gateway transaction UUID.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another worker owns the key.
var ErrHeld = errors.New("lock: already held")

// Locker hands out exclusive leases on string keys.
type Locker interface {
	// Acquire takes key for ttl and returns the function that releases it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// releaseScript deletes the key only if it still carries our token, so an
// expired lease can never free a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker returns a Locker backed by rdb. With a nil client it
// degrades to NoopLocker and the database row locks alone serialize work.
func NewRedisLocker(rdb *redis.Client, prefix string) Locker {
	if rdb == nil {
		return NoopLocker{}
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	k := l.prefix + key
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, k, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func() {
		_ = releaseScript.Run(context.Background(), l.rdb, []string{k}, token).Err()
	}, nil
}

// NoopLocker always grants the lease.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
