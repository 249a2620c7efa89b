package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventAttemptRecorded     EventType = "progress.attempt_recorded"
	EventLevelUp             EventType = "progress.level_up"
	EventStreakUpdated       EventType = "progress.streak_updated"
	EventAchievementUnlocked EventType = "achievement.unlocked"
	EventComboMilestone      EventType = "combo.milestone"
	EventComboEnded          EventType = "combo.ended"
	EventSessionStarted      EventType = "session.started"
	EventSessionEnded        EventType = "session.ended"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	// AggregateID is the student the event belongs to.
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a new base event stamped with the given time.
func NewBaseEvent(eventType EventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   at,
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// AttemptRecordedEvent is emitted after an attempt transaction commits.
type AttemptRecordedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	ProblemID     string `json:"problem_id"`
	SessionID     string `json:"session_id"`
	IsCorrect     bool   `json:"is_correct"`
	AttemptNumber int    `json:"attempt_number"`
	XPEarned      int64  `json:"xp_earned"`
	CoinsEarned   int64  `json:"coins_earned"`
}

func (e AttemptRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"problem_id":     e.ProblemID,
		"session_id":     e.SessionID,
		"is_correct":     e.IsCorrect,
		"attempt_number": e.AttemptNumber,
		"xp_earned":      e.XPEarned,
		"coins_earned":   e.CoinsEarned,
	}
}

// LevelUpEvent is emitted when total XP crosses one or more level thresholds.
type LevelUpEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	OldLevel  int    `json:"old_level"`
	NewLevel  int    `json:"new_level"`
	TotalXP   int64  `json:"total_xp"`
}

func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"old_level":  e.OldLevel,
		"new_level":  e.NewLevel,
		"total_xp":   e.TotalXP,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(studentID string, oldLevel, newLevel int, totalXP int64, at time.Time) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, studentID, at),
		StudentID: studentID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		TotalXP:   totalXP,
	}
}

// StreakUpdatedEvent is emitted when a session start changes the streak.
type StreakUpdatedEvent struct {
	BaseEvent
	StudentID     string `json:"student_id"`
	CurrentStreak int    `json:"current_streak"`
	BestStreak    int    `json:"best_streak"`
	WasReset      bool   `json:"was_reset"`
}

func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"current_streak": e.CurrentStreak,
		"best_streak":    e.BestStreak,
		"was_reset":      e.WasReset,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementUnlockedEvent is emitted once per (student, achievement).
type AchievementUnlockedEvent struct {
	BaseEvent
	StudentID      string `json:"student_id"`
	AchievementKey string `json:"achievement_key"`
	Name           string `json:"name"`
	Rarity         string `json:"rarity"`
	RewardCoins    int64  `json:"reward_coins"`
	RewardXP       int64  `json:"reward_xp"`
	RewardGems     int64  `json:"reward_gems"`
}

func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"achievement_key": e.AchievementKey,
		"name":            e.Name,
		"rarity":          e.Rarity,
		"reward_coins":    e.RewardCoins,
		"reward_xp":       e.RewardXP,
		"reward_gems":     e.RewardGems,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Combo Events
// ═══════════════════════════════════════════════════════════════════════════

// ComboMilestoneEvent is emitted on every fifth consecutive correct answer.
type ComboMilestoneEvent struct {
	BaseEvent
	StudentID  string  `json:"student_id"`
	SessionID  string  `json:"session_id"`
	ComboCount int     `json:"combo_count"`
	Multiplier float64 `json:"multiplier"`
	BonusCoins int64   `json:"bonus_coins"`
	BonusXP    int64   `json:"bonus_xp"`
}

func (e ComboMilestoneEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"session_id":  e.SessionID,
		"combo_count": e.ComboCount,
		"multiplier":  e.Multiplier,
		"bonus_coins": e.BonusCoins,
		"bonus_xp":    e.BonusXP,
	}
}

// ComboEndedEvent is emitted when a combo of notable length closes.
type ComboEndedEvent struct {
	BaseEvent
	StudentID  string `json:"student_id"`
	SessionID  string `json:"session_id"`
	MaxCombo   int    `json:"max_combo"`
	BonusCoins int64  `json:"bonus_coins"`
	BonusXP    int64  `json:"bonus_xp"`
}

func (e ComboEndedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"session_id":  e.SessionID,
		"max_combo":   e.MaxCombo,
		"bonus_coins": e.BonusCoins,
		"bonus_xp":    e.BonusXP,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionEvent covers session start and end.
type SessionEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	SessionID string `json:"session_id"`
}

func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"session_id": e.SessionID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Transport
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport to external sinks.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event's payload under the given ID.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	env := EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}
	if b, ok := event.(interface{ Base() BaseEvent }); ok {
		env.Version = b.Base().Version
		env.CorrelationID = b.Base().CorrelationID
	}
	return env, nil
}

// Base exposes the embedded BaseEvent.
func (e BaseEvent) Base() BaseEvent { return e }

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
