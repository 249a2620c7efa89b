package command

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/saga"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/validation"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD ATTEMPT COMMAND
// Records one answer to a problem and applies every progression effect:
// attempt log, reward, session and student counters, topic mastery and
// achievements in one transaction, then the session combo.
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptCommand contains one checked answer.
type RecordAttemptCommand struct {
	StudentID string `json:"student_id" validate:"required"`
	ProblemID string `json:"problem_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`

	// IsCorrect comes from the external answer checker.
	IsCorrect bool `json:"is_correct"`

	TimeSpent time.Duration `json:"time_spent"`
	HintsUsed int           `json:"hints_used"`
}

// Validate validates the command.
func (c RecordAttemptCommand) Validate() error {
	if c.TimeSpent < 0 {
		return shared.ErrNegativeTimeSpent
	}
	if c.HintsUsed < 0 {
		return shared.ErrNegativeHints
	}
	return validation.Default().Struct("attempt", "RecordAttempt", c)
}

// AttemptResult is what the student sees after answering.
type AttemptResult struct {
	AttemptID     string
	AttemptNumber int
	IsCorrect     bool

	// XPEarned and CoinsEarned include combo milestone and achievement
	// rewards granted by this attempt.
	XPEarned    int64
	CoinsEarned int64
	GemsEarned  int64

	DidLevelUp bool
	NewLevel   int
	NewTotalXP int64

	// Combo is the open combo length after this answer, 0 after a miss.
	Combo           int
	ComboMultiplier float64

	UnlockedAchievements []achievement.Definition

	// Events contains domain events generated.
	Events []shared.Event
}

// ProgressInvalidator drops cached progress for a student.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, studentID string) error
}

// RecordAttemptConfig contains configuration for the handler.
type RecordAttemptConfig struct {
	Policy reward.Policy

	// MaxTxAttempts bounds retries of the attempt transaction on retryable
	// store errors such as serialization failures.
	MaxTxAttempts uint
}

// DefaultRecordAttemptConfig returns default configuration.
func DefaultRecordAttemptConfig() RecordAttemptConfig {
	return RecordAttemptConfig{
		Policy:        reward.DefaultPolicy(),
		MaxTxAttempts: 3,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordAttemptHandler handles the RecordAttemptCommand.
type RecordAttemptHandler struct {
	tx        shared.Transactor
	students  student.Repository
	sessions  activity.SessionRepository
	attempts  activity.AttemptRepository
	problems  activity.ProblemCatalog
	mastery   mastery.Repository
	evaluator *saga.AchievementEvaluator
	combos    *ComboTracker
	publisher shared.EventPublisher
	cache     ProgressInvalidator
	ids       idgen.Generator
	clock     shared.Clock
	config    RecordAttemptConfig
	log       *logger.Logger
}

// RecordAttemptDeps groups the collaborators of RecordAttemptHandler.
type RecordAttemptDeps struct {
	Tx        shared.Transactor
	Students  student.Repository
	Sessions  activity.SessionRepository
	Attempts  activity.AttemptRepository
	Problems  activity.ProblemCatalog
	Mastery   mastery.Repository
	Evaluator *saga.AchievementEvaluator
	Combos    *ComboTracker

	// Publisher and Cache are optional.
	Publisher shared.EventPublisher
	Cache     ProgressInvalidator

	IDs   idgen.Generator
	Clock shared.Clock
	Log   *logger.Logger
}

// NewRecordAttemptHandler creates a new RecordAttemptHandler.
func NewRecordAttemptHandler(deps RecordAttemptDeps, config RecordAttemptConfig) (*RecordAttemptHandler, error) {
	if err := config.Policy.Validate(); err != nil {
		return nil, err
	}
	if config.MaxTxAttempts == 0 {
		config.MaxTxAttempts = 1
	}
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &RecordAttemptHandler{
		tx:        deps.Tx,
		students:  deps.Students,
		sessions:  deps.Sessions,
		attempts:  deps.Attempts,
		problems:  deps.Problems,
		mastery:   deps.Mastery,
		evaluator: deps.Evaluator,
		combos:    deps.Combos,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		ids:       deps.IDs,
		clock:     deps.Clock,
		config:    config,
		log:       log.With(logger.Component("record_attempt")),
	}, nil
}

// attemptOutcome is what the transaction produced.
type attemptOutcome struct {
	attempt     *activity.Attempt
	state       *student.State
	levelChange student.LevelChange
	flow        *saga.AchievementFlowResult
}

// Handle executes the record attempt command.
func (h *RecordAttemptHandler) Handle(ctx context.Context, cmd RecordAttemptCommand) (*AttemptResult, error) {
	start := time.Now()

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_attempt: validation failed: %w", err)
	}

	problem, err := h.problems.GetProblem(ctx, cmd.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("record_attempt: %w", err)
	}

	var out *attemptOutcome
	err = retry.Do(
		func() error {
			o, err := h.recordInTx(ctx, cmd, problem)
			if err != nil {
				if !shared.IsRetryable(err) {
					return retry.Unrecoverable(err)
				}
				h.log.Warn("retrying attempt transaction",
					logger.StudentID(cmd.StudentID),
					logger.ProblemID(cmd.ProblemID),
					logger.Err(err),
				)
				return err
			}
			out = o
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(h.config.MaxTxAttempts),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("record_attempt: %w", err)
	}

	result := &AttemptResult{
		AttemptID:     out.attempt.ID,
		AttemptNumber: out.attempt.AttemptNumber,
		IsCorrect:     cmd.IsCorrect,
		XPEarned:      out.attempt.XPEarned,
		CoinsEarned:   out.attempt.CoinsEarned,
		NewTotalXP:    out.state.TotalXP,
		NewLevel:      out.state.CurrentLevel,
		DidLevelUp:    out.levelChange.DidLevelUp(),
	}
	result.ComboMultiplier = 1.0
	result.Events = append(result.Events, shared.AttemptRecordedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAttemptRecorded, cmd.StudentID, out.attempt.CreatedAt),
		StudentID:     cmd.StudentID,
		ProblemID:     cmd.ProblemID,
		SessionID:     cmd.SessionID,
		IsCorrect:     cmd.IsCorrect,
		AttemptNumber: out.attempt.AttemptNumber,
		XPEarned:      out.attempt.XPEarned,
		CoinsEarned:   out.attempt.CoinsEarned,
	})

	if flow := out.flow; flow != nil && flow.HasNewAchievements() {
		result.XPEarned += flow.Reward.XP
		result.CoinsEarned += flow.Reward.Coins
		result.GemsEarned += flow.Reward.Gems
		result.UnlockedAchievements = append(result.UnlockedAchievements, flow.Unlocked...)
		result.Events = append(result.Events, saga.AchievementEvents(cmd.StudentID, flow.Unlocked, h.clock)...)
	}
	result.Events = append(result.Events, levelUpEvents(out.state, out.levelChange, h.clock)...)

	h.applyCombo(ctx, cmd, result)

	publishEvents(h.publisher, result.Events, h.log)
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, cmd.StudentID); err != nil {
			h.log.Warn("failed to invalidate progress cache",
				logger.StudentID(cmd.StudentID),
				logger.Err(err),
			)
		}
	}

	h.log.Info("attempt recorded",
		logger.StudentID(cmd.StudentID),
		logger.ProblemID(cmd.ProblemID),
		logger.SessionID(cmd.SessionID),
		logger.Bool("is_correct", cmd.IsCorrect),
		logger.Int("attempt_number", result.AttemptNumber),
		logger.XPAmount(result.XPEarned),
		logger.ComboCount(result.Combo),
		logger.Latency(time.Since(start)),
	)

	return result, nil
}

// recordInTx runs the transactional part. Every check that can reject the
// attempt happens before the first write, and a failure after it rolls back
// everything.
func (h *RecordAttemptHandler) recordInTx(ctx context.Context, cmd RecordAttemptCommand, problem *activity.Problem) (*attemptOutcome, error) {
	var out *attemptOutcome
	err := h.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := h.sessions.GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}
		if err := session.CheckAcceptsAttempt(cmd.StudentID); err != nil {
			return err
		}
		before, err := h.students.GetByID(ctx, cmd.StudentID)
		if err != nil {
			return err
		}

		prior, err := h.attempts.CountForProblem(ctx, cmd.StudentID, cmd.ProblemID)
		if err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		attemptNumber := prior + 1

		bundle := h.config.Policy.ForAttempt(reward.AttemptInput{
			IsCorrect:     cmd.IsCorrect,
			PointValue:    problem.PointValue,
			AttemptNumber: attemptNumber,
			TimeSpent:     cmd.TimeSpent,
			EstimatedTime: problem.EstimatedTime,
			CurrentStreak: before.CurrentStreak,
		})

		attempt := &activity.Attempt{
			ID:            h.ids.NewID(),
			StudentID:     cmd.StudentID,
			ProblemID:     cmd.ProblemID,
			SessionID:     cmd.SessionID,
			IsCorrect:     cmd.IsCorrect,
			AttemptNumber: attemptNumber,
			TimeSpent:     cmd.TimeSpent,
			HintsUsed:     cmd.HintsUsed,
			XPEarned:      bundle.XP,
			CoinsEarned:   bundle.Coins,
			CreatedAt:     h.clock.Now(),
		}
		if err := h.attempts.Append(ctx, attempt); err != nil {
			return fmt.Errorf("failed to append attempt: %w", err)
		}

		if err := h.sessions.ApplyDelta(ctx, cmd.SessionID, activity.NewSessionDelta(cmd.IsCorrect, bundle.XP, bundle.Coins)); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}

		st, change, err := h.students.ApplyDelta(ctx, cmd.StudentID, student.AttemptDelta(cmd.IsCorrect, bundle.XP, bundle.Coins))
		if err != nil {
			return fmt.Errorf("failed to update student: %w", err)
		}

		initial := float64(mastery.FallbackDifficulty(before.CurrentLevel))
		if _, err := h.mastery.Record(ctx, cmd.StudentID, problem.Topic, cmd.IsCorrect, initial); err != nil {
			return fmt.Errorf("failed to update mastery: %w", err)
		}

		o := &attemptOutcome{attempt: attempt, state: st, levelChange: change}
		if h.evaluator != nil {
			flow, err := h.evaluator.Execute(ctx, saga.AchievementCheckInput{
				StudentID: cmd.StudentID,
				State:     st,
				Filter:    achievement.ExceptTypes(achievement.RequirementCombo),
			})
			if err != nil {
				return err
			}
			o.flow = flow
			o.state = flow.State
			o.levelChange = mergeLevelChange(change, flow.LevelChange)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyCombo runs the combo transition after commit. Combo failures are
// logged and leave the attempt result intact.
func (h *RecordAttemptHandler) applyCombo(ctx context.Context, cmd RecordAttemptCommand, result *AttemptResult) {
	if h.combos == nil {
		return
	}
	cr, err := h.combos.RecordAnswer(ctx, cmd.StudentID, cmd.SessionID, cmd.IsCorrect)
	if err != nil {
		h.log.Error("combo update failed",
			logger.StudentID(cmd.StudentID),
			logger.SessionID(cmd.SessionID),
			logger.Err(err),
		)
		return
	}

	result.Combo = cr.Count
	result.ComboMultiplier = cr.Multiplier
	result.XPEarned += cr.Reward.XP
	result.CoinsEarned += cr.Reward.Coins
	result.GemsEarned += cr.Reward.Gems
	result.UnlockedAchievements = append(result.UnlockedAchievements, cr.Unlocked...)
	result.Events = append(result.Events, cr.Events...)

	if cr.State != nil {
		result.NewTotalXP = cr.State.TotalXP
		if cr.LevelChange.DidLevelUp() {
			result.DidLevelUp = true
		}
		result.NewLevel = cr.State.CurrentLevel
	}
}
