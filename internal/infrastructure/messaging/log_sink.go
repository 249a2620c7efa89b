package messaging

import (
	"context"
	"log/slog"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
)

// LogSink writes notifications to a structured logger. It is the fallback
// sink when no broker is configured.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "log_sink"), level: level}
}

func (s *LogSink) Channel() notification.ChannelType {
	return notification.ChannelLog
}

func (s *LogSink) Deliver(ctx context.Context, n *notification.Notification) error {
	s.logger.Log(ctx, s.level, "notification",
		"notification_id", n.ID,
		"student_id", n.StudentID,
		"type", string(n.Type),
		"priority", n.Priority.String(),
		"title", n.Title,
		"body", n.Body,
	)
	return nil
}
