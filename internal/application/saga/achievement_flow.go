// Package saga contains multi-step business processes that coordinate
// several repositories.
package saga

import (
	"context"
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVEMENT FLOW
// Load Unlocked → Load Attempt Window → Check Rules → Unlock (insert if
// absent) → Grant Rewards → repeat while grants raised the level
// ══════════════════════════════════════════════════════════════════════════════

// AchievementCheckInput contains the evidence for one evaluation.
type AchievementCheckInput struct {
	StudentID string

	// State is the student snapshot after the triggering mutation.
	State *student.State

	// ComboCount is the open combo length, for combo rules.
	ComboCount int

	// Filter restricts which requirement types are evaluated. Nil means all.
	Filter achievement.Filter
}

// Validate checks if the input is valid.
func (i AchievementCheckInput) Validate() error {
	if i.StudentID == "" {
		return shared.ValidationError("achievement", "Evaluate", "student ID is required")
	}
	if i.State == nil || i.State.ID != i.StudentID {
		return shared.ValidationError("achievement", "Evaluate", "student snapshot does not match student ID")
	}
	return nil
}

// AchievementFlowResult lists what this evaluation unlocked.
type AchievementFlowResult struct {
	Unlocked []achievement.Definition

	// Reward is the sum of the bundles granted for Unlocked.
	Reward reward.Bundle

	// State is the student after reward grants. Equal to the input snapshot
	// when nothing was unlocked.
	State *student.State

	LevelChange student.LevelChange
}

// HasNewAchievements reports whether anything was unlocked.
func (r *AchievementFlowResult) HasNewAchievements() bool {
	return len(r.Unlocked) > 0
}

// AchievementFlowStep names a step, for error context.
type AchievementFlowStep string

const (
	StepLoadUnlocked    AchievementFlowStep = "load_unlocked"
	StepLoadAttempts    AchievementFlowStep = "load_attempts"
	StepCheckRules      AchievementFlowStep = "check_rules"
	StepUnlock          AchievementFlowStep = "unlock"
	StepGrantRewards    AchievementFlowStep = "grant_rewards"
	StepAchievementDone AchievementFlowStep = "complete"
)

// AchievementFlowConfig contains configuration for the evaluator.
type AchievementFlowConfig struct {
	// MaxPasses bounds re-evaluation after reward XP raises the level.
	MaxPasses int
}

// DefaultAchievementFlowConfig returns default configuration.
func DefaultAchievementFlowConfig() AchievementFlowConfig {
	return AchievementFlowConfig{MaxPasses: 3}
}

// AchievementEvaluator unlocks catalog achievements at most once per student.
//
// Execute does not open its own transaction; run it inside the caller's
// Transactor so unlock rows and reward grants commit together.
type AchievementEvaluator struct {
	catalog      *achievement.Catalog
	achievements achievement.Repository
	attempts     activity.AttemptRepository
	students     student.Repository
	clock        shared.Clock
	config       AchievementFlowConfig
	log          *logger.Logger
}

// NewAchievementEvaluator creates an evaluator over the given catalog.
func NewAchievementEvaluator(
	catalog *achievement.Catalog,
	achievements achievement.Repository,
	attempts activity.AttemptRepository,
	students student.Repository,
	clock shared.Clock,
	config AchievementFlowConfig,
	log *logger.Logger,
) *AchievementEvaluator {
	if config.MaxPasses <= 0 {
		config.MaxPasses = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AchievementEvaluator{
		catalog:      catalog,
		achievements: achievements,
		attempts:     attempts,
		students:     students,
		clock:        clock,
		config:       config,
		log:          log.With(logger.Component("achievement_flow")),
	}
}

type achievementFlowState struct {
	CurrentStep AchievementFlowStep
	Input       AchievementCheckInput
	Unlocked    map[string]bool
	Recent      []bool
	Candidates  []achievement.Definition
	Result      AchievementFlowResult
}

// Execute runs the evaluation.
func (e *AchievementEvaluator) Execute(ctx context.Context, input AchievementCheckInput) (*AchievementFlowResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	state := &achievementFlowState{
		Input: input,
		Result: AchievementFlowResult{
			State:       input.State,
			LevelChange: student.LevelChange{OldLevel: input.State.CurrentLevel, NewLevel: input.State.CurrentLevel},
		},
	}

	state.CurrentStep = StepLoadUnlocked
	if err := e.stepLoadUnlocked(ctx, state); err != nil {
		return nil, e.wrapError(state, err)
	}

	state.CurrentStep = StepLoadAttempts
	if err := e.stepLoadAttempts(ctx, state); err != nil {
		return nil, e.wrapError(state, err)
	}

	for pass := 0; pass < e.config.MaxPasses; pass++ {
		state.CurrentStep = StepCheckRules
		e.stepCheckRules(state)
		if len(state.Candidates) == 0 {
			break
		}

		state.CurrentStep = StepUnlock
		granted, err := e.stepUnlock(ctx, state)
		if err != nil {
			return nil, e.wrapError(state, err)
		}

		state.CurrentStep = StepGrantRewards
		levelBefore := state.Result.State.CurrentLevel
		if err := e.stepGrantRewards(ctx, state, granted); err != nil {
			return nil, e.wrapError(state, err)
		}
		if state.Result.State.CurrentLevel == levelBefore {
			break
		}
	}

	state.CurrentStep = StepAchievementDone
	return &state.Result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STEPS
// ══════════════════════════════════════════════════════════════════════════════

func (e *AchievementEvaluator) stepLoadUnlocked(ctx context.Context, state *achievementFlowState) error {
	list, err := e.achievements.ListUnlocked(ctx, state.Input.StudentID)
	if err != nil {
		return fmt.Errorf("failed to load unlocked achievements: %w", err)
	}
	state.Unlocked = achievement.UnlockedSet(list)
	return nil
}

// stepLoadAttempts reads the newest attempts only if some pending
// correct_streak rule could use them.
func (e *AchievementEvaluator) stepLoadAttempts(ctx context.Context, state *achievementFlowState) error {
	if state.Input.Filter != nil && !state.Input.Filter(achievement.RequirementCorrectStreak) {
		return nil
	}
	window := e.catalog.AttemptWindow(state.Unlocked)
	if window == 0 {
		return nil
	}

	recent, err := e.attempts.Recent(ctx, state.Input.StudentID, window)
	if err != nil {
		return fmt.Errorf("failed to load recent attempts: %w", err)
	}
	state.Recent = activity.CorrectnessOf(recent)
	return nil
}

func (e *AchievementEvaluator) stepCheckRules(state *achievementFlowState) {
	st := state.Result.State
	snap := achievement.Snapshot{
		TotalProblems: st.TotalProblems,
		CurrentStreak: st.CurrentStreak,
		CurrentLevel:  st.CurrentLevel,
		ComboCount:    state.Input.ComboCount,
		RecentCorrect: state.Recent,
	}
	state.Candidates = e.catalog.Candidates(state.Unlocked, snap, state.Input.Filter)
}

// stepUnlock inserts each candidate. A candidate whose row already exists
// lost a race to a concurrent evaluation and earns nothing here.
func (e *AchievementEvaluator) stepUnlock(ctx context.Context, state *achievementFlowState) ([]achievement.Definition, error) {
	now := e.clock.Now()
	var granted []achievement.Definition
	for _, d := range state.Candidates {
		created, err := e.achievements.Unlock(ctx, state.Input.StudentID, d.Key, now)
		if err != nil {
			return nil, fmt.Errorf("failed to unlock %s: %w", d.Key, err)
		}
		state.Unlocked[d.Key] = true
		if !created {
			e.log.Debug("achievement already unlocked",
				logger.StudentID(state.Input.StudentID),
				logger.AchievementKey(d.Key),
			)
			continue
		}
		granted = append(granted, d)
	}
	return granted, nil
}

func (e *AchievementEvaluator) stepGrantRewards(ctx context.Context, state *achievementFlowState, granted []achievement.Definition) error {
	if len(granted) == 0 {
		return nil
	}

	var bundle reward.Bundle
	for _, d := range granted {
		bundle = bundle.Add(d.Reward)
	}

	delta := student.Delta{XP: bundle.XP, Coins: bundle.Coins, Gems: bundle.Gems}
	if !delta.IsZero() {
		st, change, err := e.students.ApplyDelta(ctx, state.Input.StudentID, delta)
		if err != nil {
			return fmt.Errorf("failed to grant achievement rewards: %w", err)
		}
		state.Result.State = st
		state.Result.LevelChange.NewLevel = change.NewLevel
	}
	if len(bundle.Items) > 0 {
		if err := e.students.AddItems(ctx, state.Input.StudentID, bundle.Items); err != nil {
			return fmt.Errorf("failed to grant achievement items: %w", err)
		}
	}

	state.Result.Unlocked = append(state.Result.Unlocked, granted...)
	state.Result.Reward = state.Result.Reward.Add(bundle)

	for _, d := range granted {
		e.log.Info("achievement unlocked",
			logger.StudentID(state.Input.StudentID),
			logger.AchievementKey(d.Key),
		)
	}
	return nil
}

func (e *AchievementEvaluator) wrapError(state *achievementFlowState, err error) error {
	return fmt.Errorf("achievement_flow: step %s failed: %w", state.CurrentStep, err)
}

// AchievementEvents builds the unlock events for a result.
func AchievementEvents(studentID string, unlocked []achievement.Definition, clock shared.Clock) []shared.Event {
	events := make([]shared.Event, 0, len(unlocked))
	for _, d := range unlocked {
		events = append(events, shared.AchievementUnlockedEvent{
			BaseEvent:      shared.NewBaseEvent(shared.EventAchievementUnlocked, studentID, clock.Now()),
			StudentID:      studentID,
			AchievementKey: d.Key,
			Name:           d.Name,
			Rarity:         string(d.Rarity),
			RewardCoins:    d.Reward.Coins,
			RewardXP:       d.Reward.XP,
			RewardGems:     d.Reward.Gems,
		})
	}
	return events
}
