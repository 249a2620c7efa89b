package command

import (
	"context"
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/validation"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// EndSessionCommand closes a practice session.
type EndSessionCommand struct {
	StudentID string `json:"student_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// EndSessionResult contains the closed session.
type EndSessionResult struct {
	Session *activity.Session

	// AlreadyEnded is set when the session was closed before this call.
	AlreadyEnded bool

	// MaxCombo is the length of the combo closed by this call, 0 if none.
	MaxCombo int

	Events []shared.Event
}

// EndSessionHandler handles the EndSessionCommand. Ending closes the open
// combo; later attempts on the session are rejected.
type EndSessionHandler struct {
	sessions  activity.SessionRepository
	combos    *ComboTracker
	publisher shared.EventPublisher
	clock     shared.Clock
	log       *logger.Logger
}

// NewEndSessionHandler creates a new EndSessionHandler.
func NewEndSessionHandler(
	sessions activity.SessionRepository,
	combos *ComboTracker,
	publisher shared.EventPublisher,
	clock shared.Clock,
	log *logger.Logger,
) *EndSessionHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &EndSessionHandler{
		sessions:  sessions,
		combos:    combos,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("end_session")),
	}
}

// Handle executes the end session command.
func (h *EndSessionHandler) Handle(ctx context.Context, cmd EndSessionCommand) (*EndSessionResult, error) {
	if err := validation.Default().Struct("session", "End", cmd); err != nil {
		return nil, fmt.Errorf("end_session: validation failed: %w", err)
	}

	session, err := h.sessions.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("end_session: %w", err)
	}
	if session.StudentID != cmd.StudentID {
		return nil, fmt.Errorf("end_session: %w", shared.ErrSessionOwnership)
	}

	now := h.clock.Now()
	ended, err := h.sessions.End(ctx, cmd.SessionID, now)
	if err != nil {
		return nil, fmt.Errorf("end_session: failed to end session: %w", err)
	}

	result := &EndSessionResult{AlreadyEnded: !ended}
	if ended {
		session.EndedAt = &now
		result.Events = append(result.Events, shared.SessionEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventSessionEnded, cmd.StudentID, now),
			StudentID: cmd.StudentID,
			SessionID: cmd.SessionID,
		})
	}
	result.Session = session

	// The combo is closed even for an already ended session in case an
	// earlier end failed between the two steps.
	if h.combos != nil {
		cr, err := h.combos.Close(ctx, cmd.StudentID, cmd.SessionID)
		if err != nil {
			h.log.Error("failed to close combo",
				logger.StudentID(cmd.StudentID),
				logger.SessionID(cmd.SessionID),
				logger.Err(err),
			)
		} else {
			if cr.Transition.Closed != nil {
				result.MaxCombo = cr.Transition.Closed.MaxCombo
			}
			result.Events = append(result.Events, cr.Events...)
		}
	}

	publishEvents(h.publisher, result.Events, h.log)

	h.log.Info("session ended",
		logger.StudentID(cmd.StudentID),
		logger.SessionID(cmd.SessionID),
		logger.Bool("already_ended", result.AlreadyEnded),
		logger.ComboCount(result.MaxCombo),
	)
	return result, nil
}
