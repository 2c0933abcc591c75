package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ============================================================================
// Redis distributed lock
// ============================================================================
//
// Acquire: SET key token NX PX ttl. The TTL frees the key if the holder
// dies. Release runs a compare-and-delete script so a holder whose lease
// already expired cannot delete the next holder's lock.

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

// DistributedLock is one lease on one key.
type DistributedLock struct {
	client     *redis.Client
	key        string
	token      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, token string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{client: client, key: key, token: token, expiration: expiration}
}

// TryLock makes one non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.token, l.expiration).Result()
}

// Lock retries every retryInterval until it holds the key or ctx ends.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration) error {
	for {
		ok, err := l.TryLock(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s: %v", ErrLockFailed, l.key, ctx.Err())
			}
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrLockFailed, l.key, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

// Unlock deletes the key only if this lease still owns it.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// Redis implements Locker over DistributedLock.
type Redis struct {
	client        *redis.Client
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
	log           logrus.FieldLogger
}

// NewRedis returns a Locker whose leases expire after ttl and whose Acquire
// gives up after wait.
func NewRedis(client *redis.Client, ttl, wait time.Duration, log logrus.FieldLogger) *Redis {
	return &Redis{client: client, ttl: ttl, wait: wait, retryInterval: 20 * time.Millisecond, log: log}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	l := NewDistributedLock(r.client, key, uuid.NewString(), r.ttl)

	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()
	if err := l.Lock(waitCtx, r.retryInterval); err != nil {
		return nil, err
	}

	return func() {
		// the request context may already be cancelled; release regardless
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Unlock(ctx); err != nil {
			r.log.WithError(err).WithField("key", key).Warn("release redis lock")
		}
	}, nil
}
