package eventhandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/notification"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	mock_notification "github.com/KaripeHS/BlayStorm-sub001/internal/mocks/notification"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/circuitbreaker"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func levelUp() shared.Event {
	return shared.NewLevelUpEvent("s1", 1, 2, 300, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC))
}

func TestNotifyHandler_DeliversToEverySink(t *testing.T) {
	ctrl := gomock.NewController(t)
	rabbit := mock_notification.NewMockSink(ctrl)
	logSink := mock_notification.NewMockSink(ctrl)
	rabbit.EXPECT().Channel().Return(notification.ChannelRabbitMQ).AnyTimes()
	logSink.EXPECT().Channel().Return(notification.ChannelLog).AnyTimes()

	var got *notification.Notification
	rabbit.EXPECT().Deliver(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, n *notification.Notification) error {
		got = n
		return nil
	})
	logSink.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil)

	h := NewNotifyHandler([]notification.Sink{rabbit, logSink}, idgen.NewSequence("n"), DefaultNotifyConfig(), quietLogger)
	require.NoError(t, h.Handle(levelUp()))

	require.NotNil(t, got)
	assert.Equal(t, "n-1", got.ID)
	assert.Equal(t, "s1", got.StudentID)
	assert.Equal(t, notification.TypeLevelUp, got.Type)
	assert.Equal(t, notification.PriorityHigh, got.Priority)
}

func TestNotifyHandler_SkipsUnrenderedEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mock_notification.NewMockSink(ctrl)
	sink.EXPECT().Channel().Return(notification.ChannelLog).AnyTimes()

	h := NewNotifyHandler([]notification.Sink{sink}, idgen.NewSequence("n"), DefaultNotifyConfig(), quietLogger)
	err := h.Handle(shared.AttemptRecordedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventAttemptRecorded, "s1", time.Now()),
		StudentID: "s1",
	})
	assert.NoError(t, err)
}

func TestNotifyHandler_MinPriority(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mock_notification.NewMockSink(ctrl)
	sink.EXPECT().Channel().Return(notification.ChannelLog).AnyTimes()

	cfg := DefaultNotifyConfig()
	cfg.MinPriority = notification.PriorityHigh
	h := NewNotifyHandler([]notification.Sink{sink}, idgen.NewSequence("n"), cfg, quietLogger)

	err := h.Handle(shared.ComboEndedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventComboEnded, "s1", time.Now()),
		StudentID: "s1",
		MaxCombo:  7,
	})
	assert.NoError(t, err)
}

func TestNotifyHandler_FailingSinkIsIsolated(t *testing.T) {
	ctrl := gomock.NewController(t)
	broken := mock_notification.NewMockSink(ctrl)
	healthy := mock_notification.NewMockSink(ctrl)
	broken.EXPECT().Channel().Return(notification.ChannelRabbitMQ).AnyTimes()
	healthy.EXPECT().Channel().Return(notification.ChannelLog).AnyTimes()

	deliveryErr := errors.New("connection refused")
	// The breaker opens after three failures; later calls never reach the sink.
	broken.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(deliveryErr).Times(3)
	healthy.EXPECT().Deliver(gomock.Any(), gomock.Any()).Return(nil).Times(5)

	h := NewNotifyHandler([]notification.Sink{broken, healthy}, idgen.NewSequence("n"), DefaultNotifyConfig(), quietLogger)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, h.Handle(levelUp()), deliveryErr)
	}
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, h.Handle(levelUp()), circuitbreaker.ErrCircuitOpen)
	}
}

type recordingSubscriber struct {
	all []shared.EventHandler
}

func (s *recordingSubscriber) Subscribe(shared.EventType, shared.EventHandler) error { return nil }

func (s *recordingSubscriber) SubscribeAll(h shared.EventHandler) error {
	s.all = append(s.all, h)
	return nil
}

func TestNotifyHandler_Register(t *testing.T) {
	h := NewNotifyHandler(nil, idgen.NewSequence("n"), DefaultNotifyConfig(), quietLogger)
	sub := &recordingSubscriber{}
	require.NoError(t, h.Register(sub))
	assert.Len(t, sub.all, 1)
	assert.NoError(t, sub.all[0](levelUp()))
}
