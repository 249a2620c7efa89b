// Package activity contains practice sessions, the problems answered in them,
// and the append-only attempt log.
package activity

import (
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM
// ══════════════════════════════════════════════════════════════════════════════

// Problem is the catalog metadata the reward formula needs. The catalog
// itself is owned elsewhere.
type Problem struct {
	ID            string
	PointValue    int64
	EstimatedTime time.Duration
	Difficulty    int
	Topic         string
	GradeLevel    int
}

// Validate checks the fields used in reward calculation.
func (p *Problem) Validate() error {
	if p.ID == "" {
		return shared.ValidationError("problem", "Validate", "problem ID is required")
	}
	if p.PointValue < 0 {
		return shared.ErrInvalidPointValue
	}
	if p.EstimatedTime < 0 {
		return shared.NewDomainError("problem", "Validate", shared.ErrNegativeValue, "estimated time cannot be negative")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PRACTICE SESSION
// ══════════════════════════════════════════════════════════════════════════════

// Session aggregates the attempts made between a start and an end.
type Session struct {
	ID        string
	StudentID string
	StartedAt time.Time
	EndedAt   *time.Time

	ProblemsAttempted int64
	ProblemsCorrect   int64
	ProblemsIncorrect int64
	XPEarned          int64
	CoinsEarned       int64
}

// NewSession opens a session.
func NewSession(id, studentID string, now time.Time) (*Session, error) {
	if id == "" || studentID == "" {
		return nil, shared.ValidationError("session", "Start", "session and student IDs are required")
	}
	return &Session{ID: id, StudentID: studentID, StartedAt: now}, nil
}

// IsActive reports whether attempts may still be recorded.
func (s *Session) IsActive() bool {
	return s.EndedAt == nil
}

// CheckAcceptsAttempt verifies an attempt by studentID may be recorded.
func (s *Session) CheckAcceptsAttempt(studentID string) error {
	if s.StudentID != studentID {
		return shared.ErrSessionOwnership
	}
	if !s.IsActive() {
		return shared.ErrSessionEnded
	}
	return nil
}

// SessionDelta is the counter change one attempt makes to its session.
type SessionDelta struct {
	Attempted int64
	Correct   int64
	Incorrect int64
	XP        int64
	Coins     int64
}

// NewSessionDelta builds the delta for one attempt.
func NewSessionDelta(isCorrect bool, xp, coins int64) SessionDelta {
	d := SessionDelta{Attempted: 1, XP: xp, Coins: coins}
	if isCorrect {
		d.Correct = 1
	} else {
		d.Incorrect = 1
	}
	return d
}

// Apply adds d to the in-memory counters.
func (s *Session) Apply(d SessionDelta) {
	s.ProblemsAttempted += d.Attempted
	s.ProblemsCorrect += d.Correct
	s.ProblemsIncorrect += d.Incorrect
	s.XPEarned += d.XP
	s.CoinsEarned += d.Coins
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	if s.EndedAt != nil {
		e := *s.EndedAt
		c.EndedAt = &e
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// PROBLEM ATTEMPT
// ══════════════════════════════════════════════════════════════════════════════

// Attempt is one row of the append-only attempt log. It is the audit source
// for window-based achievement rules and is never mutated after insert.
type Attempt struct {
	ID            string
	StudentID     string
	ProblemID     string
	SessionID     string
	IsCorrect     bool
	AttemptNumber int // 1-based per (student, problem)
	TimeSpent     time.Duration
	HintsUsed     int
	XPEarned      int64
	CoinsEarned   int64
	CreatedAt     time.Time
}

// CorrectnessOf extracts newest-first correctness flags.
func CorrectnessOf(attempts []*Attempt) []bool {
	out := make([]bool, len(attempts))
	for i, a := range attempts {
		out[i] = a.IsCorrect
	}
	return out
}
