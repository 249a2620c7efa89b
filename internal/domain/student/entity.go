package student

import (
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STATE
// ══════════════════════════════════════════════════════════════════════════════

// State is the aggregate progression record of one student.
type State struct {
	ID string

	TotalXP       int64
	CurrentLevel  int
	XPToNextLevel int64

	Coins int64
	Gems  int64

	CurrentStreak int
	BestStreak    int
	// LastActiveDate is a calendar day value, nil before the first session.
	LastActiveDate *time.Time

	TotalProblems   int64
	TotalCorrect    int64
	TotalIncorrect  int64
	AverageAccuracy float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewState creates the zeroed record written at registration.
func NewState(id string, now time.Time) (*State, error) {
	if id == "" {
		return nil, shared.ErrInvalidStudentID
	}
	progress := LevelFor(0)
	return &State{
		ID:            id,
		CurrentLevel:  progress.Level,
		XPToNextLevel: progress.XPForNext,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Streak returns the streak portion of the state.
func (s *State) Streak() Streak {
	return Streak{
		Current:        s.CurrentStreak,
		Best:           s.BestStreak,
		LastActiveDate: s.LastActiveDate,
	}
}

// SetStreak copies streak fields back into the state.
func (s *State) SetStreak(st Streak) {
	s.CurrentStreak = st.Current
	s.BestStreak = st.Best
	s.LastActiveDate = st.LastActiveDate
}

// Delta is a set of counter increments applied atomically.
type Delta struct {
	XP    int64
	Coins int64
	Gems  int64

	Problems  int64
	Correct   int64
	Incorrect int64
}

// AttemptDelta is the counter change for one answered problem.
func AttemptDelta(isCorrect bool, xp, coins int64) Delta {
	d := Delta{XP: xp, Coins: coins, Problems: 1}
	if isCorrect {
		d.Correct = 1
	} else {
		d.Incorrect = 1
	}
	return d
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Validate rejects decrements. Every counter on State only grows.
func (d Delta) Validate() error {
	if d.XP < 0 || d.Coins < 0 || d.Gems < 0 || d.Problems < 0 || d.Correct < 0 || d.Incorrect < 0 {
		return shared.NewDomainError("student", "ApplyDelta", shared.ErrNegativeValue, "counter increments cannot be negative")
	}
	return nil
}

// LevelChange describes the level transition caused by a delta.
type LevelChange struct {
	OldLevel int
	NewLevel int
}

func (c LevelChange) DidLevelUp() bool { return c.NewLevel > c.OldLevel }

// Apply mutates the state in memory and recomputes the derived fields.
// Stores that cannot increment in place use it under their own lock.
func (s *State) Apply(d Delta, now time.Time) LevelChange {
	old := s.CurrentLevel

	s.TotalXP += d.XP
	s.Coins += d.Coins
	s.Gems += d.Gems
	s.TotalProblems += d.Problems
	s.TotalCorrect += d.Correct
	s.TotalIncorrect += d.Incorrect
	s.Recompute()
	s.UpdatedAt = now

	return LevelChange{OldLevel: old, NewLevel: s.CurrentLevel}
}

// Recompute refreshes the cached level and accuracy from the counters.
func (s *State) Recompute() {
	progress := LevelFor(s.TotalXP)
	s.CurrentLevel = progress.Level
	s.XPToNextLevel = progress.XPForNext
	s.AverageAccuracy = Accuracy(s.TotalCorrect, s.TotalProblems)
}

// Accuracy returns correct/total, or 0 when nothing was attempted.
func Accuracy(correct, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	if s.LastActiveDate != nil {
		d := *s.LastActiveDate
		c.LastActiveDate = &d
	}
	return &c
}
