package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/achievement"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
)

func TestComboTracker_MilestoneAndBreak(t *testing.T) {
	f := newFixture(t, withCatalog(achievement.MustCatalog(nil)))
	f.registerStudent(t, "s1")
	sessionID := f.startSession(t, "s1")
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"} {
		f.addProblem(id, 10, time.Minute, "algebra")
	}

	var results []*AttemptResult
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		results = append(results, f.answer(t, "s1", sessionID, id, true))
	}
	for i, r := range results {
		assert.Equal(t, i+1, r.Combo)
	}
	// 10 points + first try + speed, plus the n=5 bonus (10 coins, 20 XP).
	assert.Equal(t, int64(20), results[3].XPEarned)
	assert.Equal(t, int64(40), results[4].XPEarned)
	assert.Equal(t, int64(15), results[4].CoinsEarned)
	assert.Equal(t, 1.5, results[4].ComboMultiplier)

	f.answer(t, "s1", sessionID, "p6", true)
	r7 := f.answer(t, "s1", sessionID, "p7", true)
	assert.Equal(t, 7, r7.Combo)

	miss := f.answer(t, "s1", sessionID, "p8", false)
	assert.Equal(t, 0, miss.Combo)
	assert.Equal(t, 1.0, miss.ComboMultiplier)

	restart := f.answer(t, "s1", sessionID, "p9", true)
	assert.Equal(t, 1, restart.Combo)

	milestones := f.pub.ofType(shared.EventComboMilestone)
	require.Len(t, milestones, 1)
	assert.Equal(t, 5, milestones[0].(shared.ComboMilestoneEvent).ComboCount)

	ended := f.pub.ofType(shared.EventComboEnded)
	require.Len(t, ended, 1)
	ev := ended[0].(shared.ComboEndedEvent)
	assert.Equal(t, 7, ev.MaxCombo)
	assert.Equal(t, int64(10), ev.BonusCoins)
	assert.Equal(t, int64(20), ev.BonusXP)
}

func TestComboTracker_ShortComboEndsQuietly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerStudent(t, "s1")

	for i := 0; i < 3; i++ {
		_, err := f.combos.RecordAnswer(ctx, "s1", "sess", true)
		require.NoError(t, err)
	}
	res, err := f.combos.RecordAnswer(ctx, "s1", "sess", false)
	require.NoError(t, err)
	require.NotNil(t, res.Transition.Closed)
	assert.Equal(t, 3, res.Transition.Closed.MaxCombo)
	assert.False(t, res.Transition.Notable)
	assert.Empty(t, res.Events)

	_, err = f.store.Combos().GetActive(ctx, "s1", "sess")
	assert.ErrorIs(t, err, shared.ErrNoActiveCombo)
}

func TestComboTracker_ConcurrentAnswersUnlockComboOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registerStudent(t, "s1")

	now := f.clock.Now()
	require.NoError(t, f.store.Combos().Save(ctx, &combo.State{
		ID:         "c1",
		StudentID:  "s1",
		SessionID:  "sess",
		ComboCount: 9,
		MaxCombo:   9,
		Multiplier: combo.Multiplier(9),
		BonusCoins: 10,
		BonusXP:    20,
		StartedAt:  now,
		UpdatedAt:  now,
	}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		unlocks int
		counts  []int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.combos.RecordAnswer(ctx, "s1", "sess", true)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			counts = append(counts, res.Count)
			for _, d := range res.Unlocked {
				if d.Key == "combo_10" {
					unlocks++
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, unlocks)
	assert.ElementsMatch(t, []int{10, 11, 12, 13, 14}, counts)

	active, err := f.store.Combos().GetActive(ctx, "s1", "sess")
	require.NoError(t, err)
	assert.Equal(t, 14, active.ComboCount)

	// combo_10 (100 coins, 50 XP) plus the n=10 milestone (20 coins, 40 XP).
	st, err := f.store.Students().GetByID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(120), st.Coins)
	assert.Equal(t, int64(90), st.TotalXP)

	assert.Len(t, f.pub.ofType(shared.EventAchievementUnlocked), 0, "tracker leaves publishing to its caller")
}

func TestComboTracker_CloseWithoutActiveCombo(t *testing.T) {
	f := newFixture(t)
	f.registerStudent(t, "s1")

	res, err := f.combos.Close(context.Background(), "s1", "sess")
	require.NoError(t, err)
	assert.Nil(t, res.Transition.Closed)
	assert.Zero(t, res.Count)
	assert.Empty(t, res.Events)
}
