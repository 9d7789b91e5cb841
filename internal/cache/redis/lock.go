package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// unlockLua deletes the lock only if the caller still owns it.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// extendLua resets the TTL only if the caller still owns the lock.
const extendLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`

// LockManager implements domain.LockManager with SET NX and a TTL. A held
// lock is refreshed every ttl/3 until released, so a crashed holder loses it
// within one TTL while a live one keeps it indefinitely.
type LockManager struct {
	c        *Client
	unlockSc *redis.Script
	extendSc *redis.Script
	logger   *slog.Logger
}

func NewLockManager(c *Client, logger *slog.Logger) *LockManager {
	return &LockManager{
		c:        c,
		unlockSc: redis.NewScript(unlockLua),
		extendSc: redis.NewScript(extendLua),
		logger:   logger.With(slog.String("component", "redis_lock")),
	}
}

// Acquire obtains the lock or returns domain.ErrLockHeld. The returned
// release func stops the refresher and deletes the key; it is safe to call
// more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lm.c.key(key)

	ok, err := lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go lm.keepAlive(lk, token, ttl, stop, done)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			<-done

			// Background context so release works after the caller's ctx is gone.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err(); err != nil {
				lm.logger.Warn("release lock failed", slog.String("key", key), slog.String("error", err.Error()))
			}
		})
	}
	return release, nil
}

func (lm *LockManager) keepAlive(lk, token string, ttl time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := ttl / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			n, err := lm.extendSc.Run(ctx, lm.c.rdb, []string{lk}, token, ttl.Milliseconds()).Int()
			cancel()
			switch {
			case err != nil:
				lm.logger.Warn("extend lock failed", slog.String("key", lk), slog.String("error", err.Error()))
			case n == 0:
				lm.logger.Error("lock lost", slog.String("key", lk))
				return
			}
		}
	}
}

var _ domain.LockManager = (*LockManager)(nil)
