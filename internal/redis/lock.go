package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("slot lock not acquired")
)

const acquireRetryInterval = 50 * time.Millisecond

// Locker guards the critical section around a single bookable slot,
// identified by its date and start time.
type Locker interface {
	WithSlotLock(ctx context.Context, date, startTime string, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker that uses a per slot Redis key.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisSlotLocker{
		client: client,
		ttl:    ttl,
	}
}

// WithSlotLock acquires the lock for date+startTime, runs fn, and releases.
// Acquisition polls until the lock TTL elapses, so a request racing a booking
// in flight waits for the winner to commit and then re-reads real state
// instead of failing with a spurious retry error.
func (l *redisSlotLocker) WithSlotLock(ctx context.Context, date, startTime string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:slot:%sT%s", date, startTime)
	token := uuid.NewString()

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, l.ttl)
	defer cancelAcquire()

	for {
		ok, err := l.client.SetNX(acquireCtx, key, token, l.ttl).Result()
		if err != nil {
			if acquireCtx.Err() != nil {
				return ErrLockNotAcquired
			}
			return fmt.Errorf("acquire slot lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-acquireCtx.Done():
			return ErrLockNotAcquired
		case <-time.After(acquireRetryInterval):
		}
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	runCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(runCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}
