package redis

import (
	"context"
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
)

// DefaultNotificationChannel is the pub/sub channel notifications go to.
const DefaultNotificationChannel = "notifications"

// PubSubSink publishes notifications on a Redis channel for live clients.
type PubSubSink struct {
	cache   *Cache
	channel string
}

func NewPubSubSink(cache *Cache, channel string) *PubSubSink {
	if channel == "" {
		channel = DefaultNotificationChannel
	}
	return &PubSubSink{cache: cache, channel: PubSubChannel(channel)}
}

func (s *PubSubSink) Channel() notification.ChannelType {
	return notification.ChannelRedis
}

func (s *PubSubSink) Deliver(ctx context.Context, n *notification.Notification) error {
	if err := s.cache.Publish(ctx, s.channel, n); err != nil {
		return fmt.Errorf("redis pubsub: publish %s: %w", n.ID, err)
	}
	return nil
}
