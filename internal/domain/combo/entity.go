// Package combo models the within-session run of consecutive correct answers.
package combo

import (
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

const (
	// MilestoneEvery is the combo interval that pays a bonus.
	MilestoneEvery = 5
	// MilestoneCoinsPerStep is paid per completed interval: 10 coins at 5, 20 at 10.
	MilestoneCoinsPerStep = 10
	// NotableLength is the shortest combo whose end is announced.
	NotableLength = 5
)

// Multiplier returns the tiered reward multiplier for a combo of length n.
func Multiplier(n int) float64 {
	switch {
	case n < 3:
		return 1.0
	case n < 5:
		return 1.25
	case n < 10:
		return 1.5
	case n < 20:
		return 2.0
	case n < 50:
		return 2.5
	default:
		return 3.0
	}
}

// Milestone is the bonus paid when a combo reaches a multiple of MilestoneEvery.
type Milestone struct {
	Count int
	Coins int64
	XP    int64
}

// MilestoneAt returns the bonus for reaching count n, if any.
func MilestoneAt(n int) (Milestone, bool) {
	if n <= 0 || n%MilestoneEvery != 0 {
		return Milestone{}, false
	}
	coins := int64(MilestoneCoinsPerStep * (n / MilestoneEvery))
	return Milestone{Count: n, Coins: coins, XP: 2 * coins}, true
}

// State is keyed by (StudentID, SessionID). At most one state per key is open
// (EndedAt == nil); closed states are kept as history.
type State struct {
	ID         string
	StudentID  string
	SessionID  string
	ComboCount int
	MaxCombo   int
	Multiplier float64
	BonusCoins int64
	BonusXP    int64
	StartedAt  time.Time
	UpdatedAt  time.Time
	EndedAt    *time.Time
}

// Start opens a combo at count 1.
func Start(id, studentID, sessionID string, now time.Time) *State {
	return &State{
		ID:         id,
		StudentID:  studentID,
		SessionID:  sessionID,
		ComboCount: 1,
		MaxCombo:   1,
		Multiplier: Multiplier(1),
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// IsActive reports whether the combo is still open.
func (s *State) IsActive() bool {
	return s != nil && s.EndedAt == nil
}

// Increment extends the combo by one correct answer and accrues the
// milestone bonus if the new count earns one.
func (s *State) Increment(now time.Time) (Milestone, bool, error) {
	if !s.IsActive() {
		return Milestone{}, false, shared.ErrComboAlreadyClosed
	}
	s.ComboCount++
	s.MaxCombo = max(s.MaxCombo, s.ComboCount)
	s.Multiplier = Multiplier(s.ComboCount)
	s.UpdatedAt = now

	m, ok := MilestoneAt(s.ComboCount)
	if ok {
		s.BonusCoins += m.Coins
		s.BonusXP += m.XP
	}
	return m, ok, nil
}

// Close ends the combo. The returned flag reports a notable combo.
func (s *State) Close(now time.Time) (bool, error) {
	if !s.IsActive() {
		return false, shared.ErrComboAlreadyClosed
	}
	s.MaxCombo = max(s.MaxCombo, s.ComboCount)
	s.EndedAt = &now
	s.UpdatedAt = now
	return s.MaxCombo >= NotableLength, nil
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	if s.EndedAt != nil {
		e := *s.EndedAt
		c.EndedAt = &e
	}
	return &c
}
