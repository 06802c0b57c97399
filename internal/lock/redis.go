// Package lock serialises reconciliation runs with a Redis advisory lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"interestsync/internal/config"
)

var (
	ErrLocked   = errors.New("another run holds the lock")
	ErrLockLost = errors.New("lock expired or was taken over")
)

// KEYS[1] = lock key
// ARGV[1] = token of the holder
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// KEYS[1] = lock key
// ARGV[1] = token of the holder
// ARGV[2] = new ttl in milliseconds
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, key string, ttl time.Duration) (*RedisLocker, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("lock key is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	return &RedisLocker{client: client, key: key, ttl: ttl}, nil
}

// FromConfig builds a locker from the project settings. It returns a nil
// locker when no Redis address is configured; the caller owns closing the
// returned client.
func FromConfig(cfg config.LockConfig) (*RedisLocker, *redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	locker, err := NewRedisLocker(client, cfg.Key, cfg.TTL)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return locker, client, nil
}

// Lease is a held lock. Only the holder's token can release or extend it.
type Lease struct {
	locker *RedisLocker
	token  string
}

func (l *RedisLocker) Acquire(ctx context.Context) (*Lease, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, fmt.Errorf("acquiring lock %s: %w", l.key, ErrLocked)
	}
	return &Lease{locker: l, token: token}, nil
}

func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.locker.client, []string{l.locker.key}, l.token).Int64()
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.locker.key, err)
	}
	if n == 0 {
		return fmt.Errorf("releasing lock %s: %w", l.locker.key, ErrLockLost)
	}
	return nil
}

func (l *Lease) Extend(ctx context.Context) error {
	n, err := extendScript.Run(ctx, l.locker.client, []string{l.locker.key}, l.token, l.locker.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extending lock %s: %w", l.locker.key, err)
	}
	if n == 0 {
		return fmt.Errorf("extending lock %s: %w", l.locker.key, ErrLockLost)
	}
	return nil
}

// WithLock runs fn while holding the lock, extending the lease every third
// of its ttl. If the lease is lost the context passed to fn is cancelled and
// the loss is returned. A nil locker runs fn unguarded.
func WithLock(ctx context.Context, locker *RedisLocker, fn func(context.Context) error) (err error) {
	if locker == nil {
		return fn(ctx)
	}
	lease, err := locker.Acquire(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		keepAlive(runCtx, done, locker.ttl/3, lease.Extend, cancel)
	}()

	err = fn(runCtx)
	close(done)
	<-stopped

	if cause := context.Cause(runCtx); errors.Is(cause, ErrLockLost) {
		cancel(nil)
		return errors.Join(err, cause)
	}
	cancel(nil)

	// Release on a fresh context so a cancelled run still frees the key.
	releaseCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer stop()
	if releaseErr := lease.Release(releaseCtx); releaseErr != nil {
		err = errors.Join(err, releaseErr)
	}
	return err
}

// keepAlive calls extend every interval until done is closed or ctx ends.
// A lost lease is reported through lost; other extend errors are retried on
// the next tick while the lease may still be valid.
func keepAlive(ctx context.Context, done <-chan struct{}, interval time.Duration, extend func(context.Context) error, lost func(error)) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := extend(ctx); errors.Is(err, ErrLockLost) {
				lost(err)
				return
			}
		}
	}
}
