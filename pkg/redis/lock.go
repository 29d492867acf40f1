package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token,
// so a holder whose lock expired cannot release someone else's.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock is a best-effort mutual exclusion over Redis keys (SET NX with a TTL).
// It guards work across replicas; correctness must not depend on it alone.
type Lock struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	heldErr error
}

// LockOption configures a Lock.
type LockOption func(*Lock)

// WithLockTTL sets how long an acquired key lives if it is never released.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(l *Lock) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockPrefix namespaces keys.
func WithLockPrefix(prefix string) LockOption {
	return func(l *Lock) {
		l.prefix = prefix
	}
}

// WithHeldError joins err into the error returned when a key is already
// held, letting callers match their own sentinel with errors.Is.
func WithHeldError(err error) LockOption {
	return func(l *Lock) {
		l.heldErr = err
	}
}

func NewLock(client redis.UniversalClient, opts ...LockOption) *Lock {
	if client == nil {
		panic("redis: client is required")
	}
	l := &Lock{
		client: client,
		prefix: "lock:",
		ttl:    30 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewLockFromConfig applies the lock settings from cfg.
func NewLockFromConfig(client redis.UniversalClient, cfg Config, opts ...LockOption) *Lock {
	base := []LockOption{WithLockTTL(cfg.LockTTL)}
	if cfg.LockPrefix != "" {
		base = append(base, WithLockPrefix(cfg.LockPrefix))
	}
	return NewLock(client, append(base, opts...)...)
}

// Lock acquires key and returns the function releasing it. When the key is
// held it returns ErrLockHeld joined with the configured held error.
func (l *Lock) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	if key == "" {
		return nil, ErrEmptyLockKey
	}

	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Join(ErrLockHeld, l.heldErr)
	}

	unlock := func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Int64()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}
	return unlock, nil
}
