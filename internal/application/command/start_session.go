package command

import (
	"context"
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/saga"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/validation"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// START SESSION COMMAND
// Opens a practice session and advances the daily streak. The session start
// is the only place the live path mutates the streak.
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand opens a session for a student.
type StartSessionCommand struct {
	StudentID string `json:"student_id" validate:"required"`
}

// StartSessionResult contains the opened session and the streak effect.
type StartSessionResult struct {
	Session       *activity.Session
	Streak        student.Streak
	StreakOutcome student.StreakOutcome

	UnlockedAchievements []achievement.Definition

	Events []shared.Event
}

// StartSessionHandler handles the StartSessionCommand.
type StartSessionHandler struct {
	tx        shared.Transactor
	students  student.Repository
	sessions  activity.SessionRepository
	evaluator *saga.AchievementEvaluator
	publisher shared.EventPublisher
	cache     ProgressInvalidator
	calendar  timeutil.Calendar
	ids       idgen.Generator
	clock     shared.Clock
	log       *logger.Logger
}

// StartSessionDeps groups the collaborators of StartSessionHandler.
type StartSessionDeps struct {
	Tx        shared.Transactor
	Students  student.Repository
	Sessions  activity.SessionRepository
	Evaluator *saga.AchievementEvaluator
	Publisher shared.EventPublisher
	Cache     ProgressInvalidator
	Calendar  timeutil.Calendar
	IDs       idgen.Generator
	Clock     shared.Clock
	Log       *logger.Logger
}

// NewStartSessionHandler creates a new StartSessionHandler.
func NewStartSessionHandler(deps StartSessionDeps) *StartSessionHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &StartSessionHandler{
		tx:        deps.Tx,
		students:  deps.Students,
		sessions:  deps.Sessions,
		evaluator: deps.Evaluator,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		calendar:  deps.Calendar,
		ids:       deps.IDs,
		clock:     deps.Clock,
		log:       log.With(logger.Component("start_session")),
	}
}

// Handle executes the start session command.
func (h *StartSessionHandler) Handle(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := validation.Default().Struct("session", "Start", cmd); err != nil {
		return nil, fmt.Errorf("start_session: validation failed: %w", err)
	}

	now := h.clock.Now()
	result := &StartSessionResult{}
	var (
		st          *student.State
		levelChange student.LevelChange
	)

	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Row lock: two session starts on the same day must not both extend.
		locked, err := h.students.GetForUpdate(ctx, cmd.StudentID)
		if err != nil {
			return err
		}

		session, err := activity.NewSession(h.ids.NewID(), cmd.StudentID, now)
		if err != nil {
			return err
		}
		if err := h.sessions.Create(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		result.Session = session

		streak, outcome := locked.Streak().RecordSessionStart(h.calendar, now)
		result.Streak = streak
		result.StreakOutcome = outcome
		if !outcome.Changed() {
			return nil
		}
		if err := h.students.SaveStreak(ctx, cmd.StudentID, streak); err != nil {
			return fmt.Errorf("failed to save streak: %w", err)
		}
		locked.SetStreak(streak)
		st = locked

		if h.evaluator == nil {
			return nil
		}
		flow, err := h.evaluator.Execute(ctx, saga.AchievementCheckInput{
			StudentID: cmd.StudentID,
			State:     locked,
			Filter:    achievement.OnlyTypes(achievement.RequirementStreak),
		})
		if err != nil {
			return err
		}
		result.UnlockedAchievements = flow.Unlocked
		st = flow.State
		levelChange = flow.LevelChange
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start_session: %w", err)
	}

	result.Events = append(result.Events, shared.SessionEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventSessionStarted, cmd.StudentID, now),
		StudentID: cmd.StudentID,
		SessionID: result.Session.ID,
	})
	if result.StreakOutcome.Changed() {
		result.Events = append(result.Events, shared.StreakUpdatedEvent{
			BaseEvent:     shared.NewBaseEvent(shared.EventStreakUpdated, cmd.StudentID, now),
			StudentID:     cmd.StudentID,
			CurrentStreak: result.Streak.Current,
			BestStreak:    result.Streak.Best,
			WasReset:      result.StreakOutcome == student.StreakReset,
		})
	}
	result.Events = append(result.Events, saga.AchievementEvents(cmd.StudentID, result.UnlockedAchievements, h.clock)...)
	result.Events = append(result.Events, levelUpEvents(st, levelChange, h.clock)...)

	publishEvents(h.publisher, result.Events, h.log)
	if h.cache != nil && result.StreakOutcome.Changed() {
		if err := h.cache.Invalidate(ctx, cmd.StudentID); err != nil {
			h.log.Warn("failed to invalidate progress cache", logger.StudentID(cmd.StudentID), logger.Err(err))
		}
	}

	h.log.Info("session started",
		logger.StudentID(cmd.StudentID),
		logger.SessionID(result.Session.ID),
		logger.String("streak_outcome", result.StreakOutcome.String()),
		logger.Int("current_streak", result.Streak.Current),
	)
	return result, nil
}
