// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/validation"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// TARGET DIFFICULTY QUERY
// Tells the problem selector which difficulty and grade band to draw the next
// problem of a topic from. Read-only.
// ══════════════════════════════════════════════════════════════════════════════

// TargetDifficultyQuery asks for the next difficulty. Topic is optional; without
// it the target comes from the student's level.
type TargetDifficultyQuery struct {
	StudentID string `json:"student_id" validate:"required"`
	Topic     string `json:"topic,omitempty"`
}

// TargetDifficulty is the selection target.
type TargetDifficulty struct {
	mastery.Target

	Topic string
	Level int

	// Mastery is the topic mastery in [0,1], 0 for an unseen topic.
	Mastery float64
}

// TargetDifficultyHandler handles the TargetDifficultyQuery.
type TargetDifficultyHandler struct {
	students student.Repository
	mastery  mastery.Repository
}

// NewTargetDifficultyHandler creates a new TargetDifficultyHandler.
func NewTargetDifficultyHandler(students student.Repository, mastery mastery.Repository) *TargetDifficultyHandler {
	return &TargetDifficultyHandler{students: students, mastery: mastery}
}

// Handle executes the query.
func (h *TargetDifficultyHandler) Handle(ctx context.Context, q TargetDifficultyQuery) (*TargetDifficulty, error) {
	if err := validation.Default().Struct("mastery", "TargetDifficulty", q); err != nil {
		return nil, fmt.Errorf("target_difficulty: validation failed: %w", err)
	}

	st, err := h.students.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("target_difficulty: %w", err)
	}

	topic := mastery.NormalizeTopic(q.Topic)
	var m *mastery.TopicMastery
	if topic != "" {
		m, err = h.mastery.Get(ctx, q.StudentID, topic)
		switch {
		case err == nil:
		case shared.IsNotFound(err):
			m = nil
		default:
			return nil, fmt.Errorf("target_difficulty: failed to load mastery: %w", err)
		}
	}

	result := &TargetDifficulty{
		Target: mastery.TargetFor(m, st.CurrentLevel),
		Topic:  topic,
		Level:  st.CurrentLevel,
	}
	if m != nil {
		result.Mastery = m.CurrentMastery
	}
	return result, nil
}
