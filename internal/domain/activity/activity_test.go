package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

func TestSession_AcceptsAttempt(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSession("sess-1", "s-1", now)
	require.NoError(t, err)

	assert.NoError(t, s.CheckAcceptsAttempt("s-1"))
	assert.ErrorIs(t, s.CheckAcceptsAttempt("s-2"), shared.ErrValidation)

	s.EndedAt = &now
	assert.ErrorIs(t, s.CheckAcceptsAttempt("s-1"), shared.ErrSessionEnded)
}

func TestSession_ApplyDelta(t *testing.T) {
	s := &Session{ID: "sess-1", StudentID: "s-1"}
	s.Apply(NewSessionDelta(true, 30, 5))
	s.Apply(NewSessionDelta(false, 0, 0))

	assert.Equal(t, int64(2), s.ProblemsAttempted)
	assert.Equal(t, int64(1), s.ProblemsCorrect)
	assert.Equal(t, int64(1), s.ProblemsIncorrect)
	assert.Equal(t, int64(30), s.XPEarned)
	assert.Equal(t, int64(5), s.CoinsEarned)
}

func TestProblem_Validate(t *testing.T) {
	p := &Problem{ID: "p-1", PointValue: 20, EstimatedTime: time.Minute}
	assert.NoError(t, p.Validate())

	p.PointValue = -1
	assert.True(t, shared.IsValidation(p.Validate()))

	assert.True(t, shared.IsValidation((&Problem{}).Validate()))
}

func TestCorrectnessOf(t *testing.T) {
	got := CorrectnessOf([]*Attempt{{IsCorrect: true}, {IsCorrect: false}})
	assert.Equal(t, []bool{true, false}, got)
}
