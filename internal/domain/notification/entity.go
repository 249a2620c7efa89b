// Package notification turns progression events into student-facing
// notifications and defines the sink they are delivered to.
package notification

import (
	"fmt"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// Type identifies what a notification is about.
type Type string

const (
	TypeLevelUp             Type = "level_up"
	TypeAchievementUnlocked Type = "achievement_unlocked"
	TypeComboMilestone      Type = "combo_milestone"
	TypeComboEnded          Type = "combo_ended"
	TypeStreakUpdated       Type = "streak_updated"
)

// Priority orders delivery when a sink batches.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Notification is a rendered message for one student.
type Notification struct {
	ID        string         `json:"id"`
	StudentID string         `json:"student_id"`
	Type      Type           `json:"type"`
	Priority  Priority       `json:"priority"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromEvent renders the notification for an event. ok is false for events
// students are not notified about.
func FromEvent(id string, event shared.Event) (n *Notification, ok bool) {
	n = &Notification{
		ID:        id,
		StudentID: event.AggregateID(),
		Data:      event.Payload(),
		CreatedAt: event.OccurredAt(),
		Priority:  PriorityNormal,
	}

	switch e := event.(type) {
	case shared.LevelUpEvent:
		n.Type = TypeLevelUp
		n.Priority = PriorityHigh
		n.Title = "Level up!"
		n.Body = fmt.Sprintf("You reached level %d.", e.NewLevel)
	case shared.AchievementUnlockedEvent:
		n.Type = TypeAchievementUnlocked
		n.Priority = PriorityHigh
		n.Title = "Achievement unlocked"
		n.Body = fmt.Sprintf("%s (%s)", e.Name, e.Rarity)
	case shared.ComboMilestoneEvent:
		n.Type = TypeComboMilestone
		n.Title = fmt.Sprintf("%dx combo!", e.ComboCount)
		n.Body = fmt.Sprintf("+%d coins, +%d XP", e.BonusCoins, e.BonusXP)
	case shared.ComboEndedEvent:
		n.Type = TypeComboEnded
		n.Priority = PriorityLow
		n.Title = "Combo ended"
		n.Body = fmt.Sprintf("Your combo peaked at %d.", e.MaxCombo)
	case shared.StreakUpdatedEvent:
		n.Type = TypeStreakUpdated
		n.Priority = PriorityLow
		n.Title = "Daily streak"
		n.Body = fmt.Sprintf("%d days in a row.", e.CurrentStreak)
	default:
		return nil, false
	}
	return n, true
}
