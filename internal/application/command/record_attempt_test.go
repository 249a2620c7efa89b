package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
)

func TestRecordAttempt_WorkedExample(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerStudent(t, "s1")

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.Students().SaveStreak(ctx, "s1", student.Streak{Current: 5, Best: 5, LastActiveDate: &day}))
	f.openSession(t, "s1", "sess-1")
	f.addProblem("p1", 20, 60*time.Second, "fractions")

	res := f.answer(t, "s1", "sess-1", "p1", true)

	// floor(((20 + 5) + 5) * 1.5) = 45. first_steps and streak_3 pay coins only.
	assert.Equal(t, 1, res.AttemptNumber)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, int64(45), res.XPEarned)
	assert.Equal(t, int64(45), res.NewTotalXP)
	assert.Equal(t, int64(5+10+30), res.CoinsEarned)
	assert.False(t, res.DidLevelUp)
	assert.Equal(t, 0, res.NewLevel)
	assert.Equal(t, 1, res.Combo)
	var keys []string
	for _, d := range res.UnlockedAchievements {
		keys = append(keys, d.Key)
	}
	assert.ElementsMatch(t, []string{"first_steps", "streak_3"}, keys)

	st, err := f.store.Students().GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), st.TotalXP)
	assert.Equal(t, int64(45), st.Coins)
	assert.Equal(t, int64(1), st.TotalProblems)
	assert.Equal(t, int64(1), st.TotalCorrect)
	assert.Equal(t, int64(55), st.XPToNextLevel-st.TotalXP)

	sess, err := f.store.Sessions().GetByID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sess.ProblemsAttempted)
	assert.Equal(t, int64(45), sess.XPEarned)

	assert.Len(t, f.pub.ofType(shared.EventAttemptRecorded), 1)
	assert.Len(t, f.pub.ofType(shared.EventAchievementUnlocked), 2)
	assert.Empty(t, f.pub.ofType(shared.EventLevelUp))
	assert.Equal(t, []string{"s1"}, f.cache.ids)
}

func TestRecordAttempt_AttemptNumberSequence(t *testing.T) {
	f := newFixture(t)
	f.registerStudent(t, "s1")
	sessionID := f.startSession(t, "s1")
	f.addProblem("p1", 20, 60*time.Second, "algebra")

	for i := 1; i <= 3; i++ {
		res := f.answer(t, "s1", sessionID, "p1", false)
		assert.Equal(t, i, res.AttemptNumber)
		assert.Zero(t, res.XPEarned)
	}

	res := f.answer(t, "s1", sessionID, "p1", true)
	assert.Equal(t, 4, res.AttemptNumber)
	// No first-try bonus and no streak multiplier at streak 1.
	assert.Equal(t, int64(25), res.XPEarned)
}

func TestRecordAttempt_LevelUp(t *testing.T) {
	f := newFixture(t)
	f.registerStudent(t, "s1")
	sessionID := f.startSession(t, "s1")
	f.addProblem("big", 200, time.Minute, "geometry")

	res := f.answer(t, "s1", sessionID, "big", true)

	assert.True(t, res.DidLevelUp)
	assert.Equal(t, 1, res.NewLevel)
	assert.Equal(t, int64(210), res.NewTotalXP)

	events := f.pub.ofType(shared.EventLevelUp)
	require.Len(t, events, 1)
	ev := events[0].(shared.LevelUpEvent)
	assert.Equal(t, 0, ev.OldLevel)
	assert.Equal(t, 1, ev.NewLevel)
}

func TestRecordAttempt_UpdatesTopicMastery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerStudent(t, "s1")
	sessionID := f.startSession(t, "s1")
	f.addProblem("p1", 10, time.Minute, "Fractions")

	f.answer(t, "s1", sessionID, "p1", true)
	f.answer(t, "s1", sessionID, "p1", false)

	m, err := f.store.Mastery().Get(ctx, "s1", "fractions")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.ProblemsAttempted)
	assert.Equal(t, int64(1), m.ProblemsCorrect)
	assert.InDelta(t, 0.5, m.CurrentMastery, 1e-9)
	// Level 0 starts at difficulty 1: +0.1 then -0.2 clamps back to 1.
	assert.InDelta(t, 1.0, m.CurrentDifficulty, 1e-9)
}

func TestRecordAttempt_RejectsBeforeMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerStudent(t, "s1")
	f.registerStudent(t, "s2")
	f.openSession(t, "s1", "open")
	f.openSession(t, "s2", "foreign")
	f.openSession(t, "ghost", "ghost-session")
	f.openSession(t, "s1", "closed")
	_, err := f.store.Sessions().End(ctx, "closed", f.clock.Now())
	require.NoError(t, err)
	f.addProblem("p1", 20, time.Minute, "algebra")

	valid := RecordAttemptCommand{StudentID: "s1", ProblemID: "p1", SessionID: "open", IsCorrect: true, TimeSpent: time.Second}

	tests := []struct {
		name   string
		mutate func(c *RecordAttemptCommand)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "negative time spent",
			mutate: func(c *RecordAttemptCommand) { c.TimeSpent = -time.Second },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrNegativeTimeSpent)
				assert.True(t, shared.IsValidation(err))
			},
		},
		{
			name:   "negative hints",
			mutate: func(c *RecordAttemptCommand) { c.HintsUsed = -1 },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrNegativeHints)
			},
		},
		{
			name:   "missing student ID",
			mutate: func(c *RecordAttemptCommand) { c.StudentID = "" },
			check: func(t *testing.T, err error) {
				assert.True(t, shared.IsValidation(err))
				assert.Contains(t, err.Error(), "student_id")
			},
		},
		{
			name:   "unknown problem",
			mutate: func(c *RecordAttemptCommand) { c.ProblemID = "nope" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrProblemNotFound)
				assert.True(t, shared.IsNotFound(err))
			},
		},
		{
			name:   "unknown session",
			mutate: func(c *RecordAttemptCommand) { c.SessionID = "nope" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrSessionNotFound)
			},
		},
		{
			name:   "unknown student",
			mutate: func(c *RecordAttemptCommand) { c.StudentID = "ghost"; c.SessionID = "ghost-session" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrStudentNotFound)
			},
		},
		{
			name:   "ended session",
			mutate: func(c *RecordAttemptCommand) { c.SessionID = "closed" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrSessionEnded)
			},
		},
		{
			name:   "session of another student",
			mutate: func(c *RecordAttemptCommand) { c.SessionID = "foreign" },
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, shared.ErrSessionOwnership)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := valid
			tt.mutate(&cmd)

			res, err := f.record.Handle(ctx, cmd)
			require.Error(t, err)
			assert.Nil(t, res)
			tt.check(t, err)

			st, err := f.store.Students().GetByID(ctx, "s1")
			require.NoError(t, err)
			assert.Zero(t, st.TotalXP)
			assert.Zero(t, st.TotalProblems)

			recent, err := f.store.Attempts().Recent(ctx, "s1", 0)
			require.NoError(t, err)
			assert.Empty(t, recent)
		})
	}
	assert.Empty(t, f.pub.ofType(shared.EventAttemptRecorded))
}

type failingLocker struct{}

func (failingLocker) Lock(context.Context, string) (func(), error) {
	return nil, errors.New("redis unavailable")
}

func TestRecordAttempt_ComboFailureKeepsAttempt(t *testing.T) {
	f := newFixture(t, withLocker(failingLocker{}))
	f.registerStudent(t, "s1")
	sessionID := f.startSession(t, "s1")
	f.addProblem("p1", 20, time.Minute, "algebra")

	res := f.answer(t, "s1", sessionID, "p1", true)

	assert.Equal(t, int64(30), res.XPEarned)
	assert.Equal(t, 0, res.Combo)

	st, err := f.store.Students().GetByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), st.TotalXP)
}

func TestRecordAttempt_CorrectStreakAchievement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerStudent(t, "s1")
	sessionID := f.startSession(t, "s1")
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		f.addProblem(id, 10, time.Minute, "algebra")
	}

	f.answer(t, "s1", sessionID, "a", false)
	var last *AttemptResult
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		last = f.answer(t, "s1", sessionID, id, true)
	}

	unlocked, err := f.store.Achievements().ListUnlocked(ctx, "s1")
	require.NoError(t, err)
	keys := make([]string, 0, len(unlocked))
	for _, a := range unlocked {
		keys = append(keys, a.AchievementKey)
	}
	assert.Contains(t, keys, "hot_hand")
	assert.NotContains(t, keys, "perfect_ten")

	var lastKeys []string
	for _, d := range last.UnlockedAchievements {
		lastKeys = append(lastKeys, d.Key)
	}
	assert.Contains(t, lastKeys, "hot_hand")
}
