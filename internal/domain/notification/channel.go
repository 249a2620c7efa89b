package notification

//go:generate mockgen -source=channel.go -destination=../../mocks/notification/mock_sink.go -package=mock_notification

import "context"

// ChannelType names a delivery transport.
type ChannelType string

const (
	ChannelRabbitMQ ChannelType = "rabbitmq"
	ChannelRedis    ChannelType = "redis"
	ChannelLog      ChannelType = "log"
)

// Sink delivers notifications. Delivery is best-effort: callers log failures
// and never let them affect progression results.
type Sink interface {
	Channel() ChannelType
	Deliver(ctx context.Context, n *Notification) error
}
