// Package eventhandler contains subscribers to domain events.
package eventhandler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/circuitbreaker"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFY HANDLER
// Renders student-facing events into notifications and forwards them to the
// configured sinks. Delivery is best-effort: a failing sink is logged, then
// short-circuited by its breaker, and never reaches the progression path.
// ═══════════════════════════════════════════════════════════════════════════

// NotifyConfig contains configuration for the handler.
type NotifyConfig struct {
	// DeliveryTimeout bounds one Deliver call.
	DeliveryTimeout time.Duration

	// MinPriority drops notifications below it.
	MinPriority notification.Priority
}

// DefaultNotifyConfig returns default configuration.
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		DeliveryTimeout: 3 * time.Second,
		MinPriority:     notification.PriorityLow,
	}
}

type guardedSink struct {
	sink    notification.Sink
	breaker *circuitbreaker.CircuitBreaker
}

// NotifyHandler forwards events to notification sinks.
type NotifyHandler struct {
	sinks  []guardedSink
	ids    idgen.Generator
	config NotifyConfig
	logger *slog.Logger
}

// NewNotifyHandler creates a handler delivering to every sink.
func NewNotifyHandler(sinks []notification.Sink, ids idgen.Generator, config NotifyConfig, logger *slog.Logger) *NotifyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &NotifyHandler{
		ids:    ids,
		config: config,
		logger: logger.With("component", "notify_handler"),
	}
	for _, s := range sinks {
		name := "sink-" + string(s.Channel())
		h.sinks = append(h.sinks, guardedSink{
			sink: s,
			breaker: circuitbreaker.SinkBreaker(name, func(name string, from, to circuitbreaker.State) {
				h.logger.Warn("sink breaker state changed", "sink", name, "from", from.String(), "to", to.String())
			}),
		})
	}
	return h
}

// Register subscribes the handler to every event on the bus.
func (h *NotifyHandler) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(h.Handle)
}

// Handle renders and delivers one event. The returned error joins every sink
// failure; the bus only logs it.
func (h *NotifyHandler) Handle(event shared.Event) error {
	n, ok := notification.FromEvent(h.ids.NewID(), event)
	if !ok || n.Priority < h.config.MinPriority {
		return nil
	}

	var errs []error
	for _, gs := range h.sinks {
		if err := h.deliver(gs, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *NotifyHandler) deliver(gs guardedSink, n *notification.Notification) error {
	ctx := context.Background()
	if h.config.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.DeliveryTimeout)
		defer cancel()
	}

	err := gs.breaker.Execute(ctx, func(ctx context.Context) error {
		return gs.sink.Deliver(ctx, n)
	})
	if err != nil {
		h.logger.Warn("notification delivery failed",
			"channel", gs.sink.Channel(),
			"notification_type", n.Type,
			"student_id", n.StudentID,
			"error", err,
		)
		return err
	}

	h.logger.Debug("notification delivered",
		"channel", gs.sink.Channel(),
		"notification_type", n.Type,
		"student_id", n.StudentID,
	)
	return nil
}
