package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
)

// RabbitMQConfig holds connection settings for the notification queue.
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	VHost    string

	// Queue receives one JSON message per notification.
	Queue string

	ConnectAttempts uint
	ConnectDelay    time.Duration
}

// URL builds the AMQP connection URL.
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/%s", c.User, c.Password, c.Host, c.Port, c.VHost)
}

// amqpChannel is the subset of *amqp.Channel the sink uses.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQSink publishes notifications to a durable queue.
type RabbitMQSink struct {
	conn    *amqp.Connection
	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
	channel amqpChannel
	queue   string
	logger  *slog.Logger
}

// DialRabbitMQ connects with exponential backoff, then declares the queue.
func DialRabbitMQ(ctx context.Context, cfg RabbitMQConfig, logger *slog.Logger) (*RabbitMQSink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectDelay <= 0 {
		cfg.ConnectDelay = 500 * time.Millisecond
	}

	var conn *amqp.Connection
	err := retry.Do(
		func() error {
			c, err := amqp.Dial(cfg.URL())
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("rabbitmq connect failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	sink, err := newRabbitMQSink(ch, cfg.Queue, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	sink.conn = conn
	return sink, nil
}

func newRabbitMQSink(ch amqpChannel, queue string, logger *slog.Logger) (*RabbitMQSink, error) {
	if queue == "" {
		return nil, errors.New("rabbitmq: queue name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &RabbitMQSink{
		channel: ch,
		queue:   queue,
		logger:  logger.With("component", "rabbitmq_sink"),
	}, nil
}

func (s *RabbitMQSink) Channel() notification.ChannelType {
	return notification.ChannelRabbitMQ
}

// Deliver publishes the notification as a persistent JSON message.
func (s *RabbitMQSink) Deliver(ctx context.Context, n *notification.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.channel.PublishWithContext(
		ctx,
		"",      // exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Type:         string(n.Type),
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", n.ID, err)
	}
	s.logger.Debug("notification published", "notification_id", n.ID, "queue", s.queue)
	return nil
}

// Close closes the channel and the connection.
func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
