// Package mastery tracks per-topic accuracy and the adaptive difficulty that
// problem selection uses for the next problem in that topic.
package mastery

import (
	"math"
	"strings"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

const (
	MinDifficulty = 1.0
	MaxDifficulty = 10.0

	// Difficulty drops twice as fast as it rises, so a struggling student
	// gets easier problems quickly.
	CorrectStep   = 0.1
	IncorrectStep = -0.2
)

// TopicMastery is keyed by (StudentID, Topic). Rows are created lazily on the
// first attempt in a topic and never deleted.
type TopicMastery struct {
	StudentID         string
	Topic             string
	ProblemsAttempted int64
	ProblemsCorrect   int64
	CurrentMastery    float64
	CurrentDifficulty float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NormalizeTopic canonicalizes a topic key.
func NormalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

// New creates an empty mastery row starting at the given difficulty.
func New(studentID, topic string, initialDifficulty float64, now time.Time) (*TopicMastery, error) {
	topic = NormalizeTopic(topic)
	if studentID == "" || topic == "" {
		return nil, shared.ValidationError("mastery", "New", "student and topic are required")
	}
	return &TopicMastery{
		StudentID:         studentID,
		Topic:             topic,
		CurrentDifficulty: ClampDifficulty(initialDifficulty),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Record folds one attempt into the row.
func (m *TopicMastery) Record(correct bool, now time.Time) {
	m.ProblemsAttempted++
	if correct {
		m.ProblemsCorrect++
	}
	m.CurrentMastery = float64(m.ProblemsCorrect) / float64(m.ProblemsAttempted)
	m.CurrentDifficulty = ClampDifficulty(m.CurrentDifficulty + DifficultyStep(correct))
	m.UpdatedAt = now
}

// DifficultyStep returns the signed adjustment for an answer.
func DifficultyStep(correct bool) float64 {
	if correct {
		return CorrectStep
	}
	return IncorrectStep
}

// ClampDifficulty bounds d to [MinDifficulty, MaxDifficulty] and rounds to two
// decimals so repeated steps do not accumulate float noise.
func ClampDifficulty(d float64) float64 {
	d = math.Round(d*100) / 100
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}
