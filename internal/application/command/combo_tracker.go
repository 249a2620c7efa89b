package command

import (
	"context"
	"fmt"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/saga"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/idgen"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMBO TRACKER
// Feeds answers into the per-session combo machine. Writers for one
// (student, session) are serialized by the SessionLocker; milestone bonuses
// and combo achievements commit with the combo state.
// ══════════════════════════════════════════════════════════════════════════════

// ComboTrackerConfig contains configuration for the tracker.
type ComboTrackerConfig struct {
	// LockTimeout bounds how long a writer waits for the session lock.
	LockTimeout time.Duration
}

// DefaultComboTrackerConfig returns default configuration.
func DefaultComboTrackerConfig() ComboTrackerConfig {
	return ComboTrackerConfig{LockTimeout: 5 * time.Second}
}

// ComboResult describes one combo transition.
type ComboResult struct {
	Transition combo.Transition

	// Count is the open combo length after the transition.
	Count int

	// Multiplier is the tier multiplier at Count.
	Multiplier float64

	// Reward is what the transition granted: milestone bonus plus combo
	// achievement rewards.
	Reward reward.Bundle

	Unlocked []achievement.Definition

	// State is the student after grants, nil when nothing was granted.
	State       *student.State
	LevelChange student.LevelChange

	Events []shared.Event
}

// ComboTracker runs combo transitions.
type ComboTracker struct {
	tx        shared.Transactor
	combos    combo.Repository
	students  student.Repository
	locker    combo.SessionLocker
	evaluator *saga.AchievementEvaluator
	ids       idgen.Generator
	clock     shared.Clock
	config    ComboTrackerConfig
	log       *logger.Logger
}

// NewComboTracker creates a new ComboTracker.
func NewComboTracker(
	tx shared.Transactor,
	combos combo.Repository,
	students student.Repository,
	locker combo.SessionLocker,
	evaluator *saga.AchievementEvaluator,
	ids idgen.Generator,
	clock shared.Clock,
	config ComboTrackerConfig,
	log *logger.Logger,
) *ComboTracker {
	if log == nil {
		log = logger.Nop()
	}
	return &ComboTracker{
		tx:        tx,
		combos:    combos,
		students:  students,
		locker:    locker,
		evaluator: evaluator,
		ids:       ids,
		clock:     clock,
		config:    config,
		log:       log.With(logger.Component("combo_tracker")),
	}
}

// RecordAnswer applies one answer to the session's combo.
func (t *ComboTracker) RecordAnswer(ctx context.Context, studentID, sessionID string, correct bool) (*ComboResult, error) {
	return t.run(ctx, studentID, sessionID, func(active *combo.State, now time.Time) (combo.Transition, error) {
		return combo.Advance(active, correct, studentID, sessionID, t.ids.NewID, now)
	})
}

// Close ends the session's open combo, if any. Used on session end and by the
// idle-combo job.
func (t *ComboTracker) Close(ctx context.Context, studentID, sessionID string) (*ComboResult, error) {
	return t.run(ctx, studentID, sessionID, func(active *combo.State, now time.Time) (combo.Transition, error) {
		if !active.IsActive() {
			return combo.Transition{}, nil
		}
		notable, err := active.Close(now)
		if err != nil {
			return combo.Transition{}, err
		}
		return combo.Transition{Closed: active, Notable: notable}, nil
	})
}

type transitionFunc func(active *combo.State, now time.Time) (combo.Transition, error)

func (t *ComboTracker) run(ctx context.Context, studentID, sessionID string, step transitionFunc) (*ComboResult, error) {
	lockCtx := ctx
	if t.config.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, t.config.LockTimeout)
		defer cancel()
	}
	unlock, err := t.locker.Lock(lockCtx, combo.LockKey(studentID, sessionID))
	if err != nil {
		return nil, fmt.Errorf("combo_tracker: failed to acquire session lock: %w", err)
	}
	defer unlock()

	var result *ComboResult
	err = t.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := t.transition(ctx, studentID, sessionID, step)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("combo_tracker: %w", err)
	}
	return result, nil
}

func (t *ComboTracker) transition(ctx context.Context, studentID, sessionID string, step transitionFunc) (*ComboResult, error) {
	active, err := t.combos.GetActive(ctx, studentID, sessionID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load combo: %w", err)
		}
		active = nil
	}

	now := t.clock.Now()
	tr, err := step(active, now)
	if err != nil {
		return nil, err
	}

	result := &ComboResult{
		Transition: tr,
		Count:      tr.Count(),
		Multiplier: combo.Multiplier(tr.Count()),
	}

	if tr.Closed != nil {
		if err := t.combos.Save(ctx, tr.Closed); err != nil {
			return nil, fmt.Errorf("failed to save closed combo: %w", err)
		}
		if tr.Notable {
			result.Events = append(result.Events, shared.ComboEndedEvent{
				BaseEvent:  shared.NewBaseEvent(shared.EventComboEnded, studentID, now),
				StudentID:  studentID,
				SessionID:  sessionID,
				MaxCombo:   tr.Closed.MaxCombo,
				BonusCoins: tr.Closed.BonusCoins,
				BonusXP:    tr.Closed.BonusXP,
			})
		}
		t.log.Debug("combo closed",
			logger.StudentID(studentID),
			logger.SessionID(sessionID),
			logger.ComboCount(tr.Closed.MaxCombo),
		)
	}

	if tr.Active == nil {
		return result, nil
	}
	if err := t.combos.Save(ctx, tr.Active); err != nil {
		return nil, fmt.Errorf("failed to save combo: %w", err)
	}

	var st *student.State
	if m := tr.Milestone; m != nil {
		bonus := reward.Bundle{Coins: m.Coins, XP: m.XP}
		var change student.LevelChange
		st, change, err = t.students.ApplyDelta(ctx, studentID, student.Delta{XP: bonus.XP, Coins: bonus.Coins})
		if err != nil {
			return nil, fmt.Errorf("failed to grant combo milestone: %w", err)
		}
		result.Reward = result.Reward.Add(bonus)
		result.State = st
		result.LevelChange = change
		result.Events = append(result.Events, shared.ComboMilestoneEvent{
			BaseEvent:  shared.NewBaseEvent(shared.EventComboMilestone, studentID, now),
			StudentID:  studentID,
			SessionID:  sessionID,
			ComboCount: m.Count,
			Multiplier: tr.Active.Multiplier,
			BonusCoins: m.Coins,
			BonusXP:    m.XP,
		})
		t.log.Info("combo milestone reached",
			logger.StudentID(studentID),
			logger.SessionID(sessionID),
			logger.ComboCount(m.Count),
			logger.CoinAmount(m.Coins),
			logger.XPAmount(m.XP),
		)
	}

	if t.evaluator != nil {
		if err := t.evaluateCombo(ctx, studentID, tr.Count(), st, result); err != nil {
			return nil, err
		}
	}
	result.Events = append(result.Events, levelUpEvents(result.State, result.LevelChange, t.clock)...)

	return result, nil
}

func (t *ComboTracker) evaluateCombo(ctx context.Context, studentID string, count int, st *student.State, result *ComboResult) error {
	if st == nil {
		var err error
		if st, err = t.students.GetByID(ctx, studentID); err != nil {
			return fmt.Errorf("failed to load student: %w", err)
		}
	}
	flow, err := t.evaluator.Execute(ctx, saga.AchievementCheckInput{
		StudentID:  studentID,
		State:      st,
		ComboCount: count,
		Filter:     achievement.OnlyTypes(achievement.RequirementCombo),
	})
	if err != nil {
		return err
	}
	if !flow.HasNewAchievements() {
		return nil
	}
	result.Unlocked = flow.Unlocked
	result.Reward = result.Reward.Add(flow.Reward)
	result.State = flow.State
	result.LevelChange = mergeLevelChange(result.LevelChange, flow.LevelChange)
	result.Events = append(result.Events, saga.AchievementEvents(studentID, flow.Unlocked, t.clock)...)
	return nil
}
