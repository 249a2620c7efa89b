package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLockConfig tunes lock acquisition.
type SessionLockConfig struct {
	// TTL expires a lock whose holder crashed.
	TTL time.Duration
	// RetryInterval is the polling period while the lock is held elsewhere.
	RetryInterval time.Duration
}

func DefaultSessionLockConfig() SessionLockConfig {
	return SessionLockConfig{
		TTL:           TTLComboLock,
		RetryInterval: 25 * time.Millisecond,
	}
}

// SessionLocker serializes combo writers across processes with SET NX and a
// per-acquisition token. It implements combo.SessionLocker.
type SessionLocker struct {
	client redis.UniversalClient
	config SessionLockConfig
	logger *slog.Logger
}

func NewSessionLocker(cache *Cache, config SessionLockConfig, logger *slog.Logger) *SessionLocker {
	if config.TTL <= 0 {
		config.TTL = TTLComboLock
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 25 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionLocker{
		client: cache.Client(),
		config: config,
		logger: logger.With("component", "session_locker"),
	}
}

// Lock polls until the key is acquired or ctx is done.
func (l *SessionLocker) Lock(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return nil, ErrCacheKeyEmpty
	}
	redisKey := LockKey(key)
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.config.TTL).Result()
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return l.unlocker(redisKey, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *SessionLocker) unlocker(redisKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("release lock failed", "key", redisKey, "error", err)
			}
		})
	}
}
