package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
)

// unreachableCache points at a port nothing listens on, so every command
// fails fast without a server.
func unreachableCache(t *testing.T) *Cache {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		MaxRetries:  -1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client, cfg)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "progress:s-1", ProgressKey("s-1"))
	assert.Equal(t, "lock:combo:s-1:sess-1", LockKey("s-1:sess-1"))
	assert.Equal(t, "pubsub:notifications", PubSubChannel(DefaultNotificationChannel))
	assert.Equal(t, "localhost:6379", DefaultConfig().Addr())
}

func TestCache_ValidatesBeforeNetwork(t *testing.T) {
	cache := unreachableCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, cache.Set(ctx, "", 1, time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, cache.Set(ctx, "k", make(chan int), time.Minute), ErrCacheSerialization)
	assert.ErrorIs(t, cache.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Publish(ctx, "", "x"), ErrCacheKeyEmpty)
	assert.NoError(t, cache.Delete(ctx))
}

func TestNewCache_ConnectionError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1
	cfg.DialTimeout = 100 * time.Millisecond
	cfg.MaxRetries = -1

	_, err := NewCache(cfg)
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestProgressCache_TransportErrorIsNotAMiss(t *testing.T) {
	pc := NewProgressCache(unreachableCache(t), 0)
	assert.Equal(t, TTLProgressCache, pc.ttl)

	_, ok, err := pc.Get(context.Background(), "s-1")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, pc.Set(context.Background(), nil), ErrCacheNilValue)
}

func TestSessionLocker_FailsWithoutServer(t *testing.T) {
	locker := NewSessionLocker(unreachableCache(t), SessionLockConfig{}, nil)
	assert.Equal(t, DefaultSessionLockConfig(), locker.config)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := locker.Lock(ctx, "s-1:sess-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "acquire lock s-1:sess-1")

	_, err = locker.Lock(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestPubSubSink(t *testing.T) {
	sink := NewPubSubSink(unreachableCache(t), "")
	assert.Equal(t, notification.ChannelRedis, sink.Channel())
	assert.Equal(t, "pubsub:notifications", sink.channel)

	err := sink.Deliver(context.Background(), &notification.Notification{ID: "n-1"})
	assert.ErrorContains(t, err, "publish n-1")
}
