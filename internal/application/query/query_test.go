package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/mastery"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/memory"
)

func newStoreWithStudent(t *testing.T, xp int64) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	st, err := student.NewState("s1", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Students().Create(ctx, st))
	if xp > 0 {
		_, _, err = store.Students().ApplyDelta(ctx, "s1", student.Delta{XP: xp})
		require.NoError(t, err)
	}
	return store
}

func TestTargetDifficulty_FallsBackToLevel(t *testing.T) {
	tests := []struct {
		name     string
		xp       int64
		level    int
		expected float64
	}{
		{"level 0", 0, 0, 1},
		{"level 2", 300, 2, 2},
		{"level 10", 3200, 10, 5},
		{"level 20", 9000, 20, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStoreWithStudent(t, tt.xp)
			h := NewTargetDifficultyHandler(store.Students(), store.Mastery())

			res, err := h.Handle(context.Background(), TargetDifficultyQuery{StudentID: "s1", Topic: "Fractions"})
			require.NoError(t, err)
			assert.Equal(t, tt.level, res.Level)
			assert.Equal(t, tt.expected, res.Difficulty)
			assert.Equal(t, mastery.SourceLevel, res.Source)
			assert.Equal(t, "fractions", res.Topic)
			assert.Zero(t, res.Mastery)
		})
	}
}

func TestTargetDifficulty_UsesTopicMastery(t *testing.T) {
	store := newStoreWithStudent(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := store.Mastery().Record(ctx, "s1", "algebra", true, 3)
		require.NoError(t, err)
	}

	h := NewTargetDifficultyHandler(store.Students(), store.Mastery())
	res, err := h.Handle(ctx, TargetDifficultyQuery{StudentID: "s1", Topic: "algebra"})
	require.NoError(t, err)

	assert.Equal(t, mastery.SourceTopic, res.Source)
	assert.InDelta(t, 3.5, res.Difficulty, 1e-9)
	assert.InDelta(t, 2.5, res.DifficultyWindow.Min, 1e-9)
	assert.InDelta(t, 4.5, res.DifficultyWindow.Max, 1e-9)
	assert.Equal(t, 3, res.GradeWindow.Min)
	assert.Equal(t, 5, res.GradeWindow.Max)
	assert.Equal(t, 1.0, res.Mastery)
}

func TestTargetDifficulty_Errors(t *testing.T) {
	store := newStoreWithStudent(t, 0)
	h := NewTargetDifficultyHandler(store.Students(), store.Mastery())

	_, err := h.Handle(context.Background(), TargetDifficultyQuery{StudentID: "ghost", Topic: "algebra"})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)

	_, err = h.Handle(context.Background(), TargetDifficultyQuery{Topic: "algebra"})
	assert.True(t, shared.IsValidation(err))
}

func TestTargetDifficulty_NoTopicUsesLevel(t *testing.T) {
	store := newStoreWithStudent(t, 3200)
	ctx := context.Background()
	_, err := store.Mastery().Record(ctx, "s1", "algebra", true, 9)
	require.NoError(t, err)

	h := NewTargetDifficultyHandler(store.Students(), store.Mastery())
	res, err := h.Handle(ctx, TargetDifficultyQuery{StudentID: "s1"})
	require.NoError(t, err)

	assert.Equal(t, mastery.SourceLevel, res.Source)
	assert.Equal(t, 10, res.Level)
	assert.Equal(t, 5.0, res.Difficulty)
	assert.Empty(t, res.Topic)
	assert.Zero(t, res.Mastery)
}

type fakeCache struct {
	mu    sync.Mutex
	views map[string]*ProgressView
	gets  int
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: make(map[string]*ProgressView)}
}

func (c *fakeCache) Get(_ context.Context, id string) (*ProgressView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.views[id]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, v *ProgressView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.views[v.StudentID] = v
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, id)
	return nil
}

func TestProgress_BuildAndCache(t *testing.T) {
	store := newStoreWithStudent(t, 191)
	ctx := context.Background()
	_, err := store.Mastery().Record(ctx, "s1", "geometry", true, 1)
	require.NoError(t, err)
	_, err = store.Achievements().Unlock(ctx, "s1", "first_steps", time.Now())
	require.NoError(t, err)

	cache := newFakeCache()
	h := NewProgressHandler(store.Students(), store.Mastery(), store.Achievements(), cache, nil)

	view, err := h.Handle(ctx, GetProgressQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 1, view.Level)
	assert.Equal(t, int64(191), view.TotalXP)
	assert.Equal(t, int64(282), view.XPToNextLevel)
	// (191-100) / (282-100)
	assert.InDelta(t, 0.5, view.LevelProgress, 1e-9)
	require.Len(t, view.Topics, 1)
	assert.Equal(t, "geometry", view.Topics[0].Topic)
	assert.Equal(t, []string{"first_steps"}, view.Achievements)
	assert.Equal(t, 1, cache.sets)

	// Served from cache: store changes are invisible until invalidation.
	_, _, err = store.Students().ApplyDelta(ctx, "s1", student.Delta{Coins: 7})
	require.NoError(t, err)
	cached, err := h.Handle(ctx, GetProgressQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, cached.Coins)

	require.NoError(t, cache.Invalidate(ctx, "s1"))
	fresh, err := h.Handle(ctx, GetProgressQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), fresh.Coins)

	bypass, err := h.Handle(ctx, GetProgressQuery{StudentID: "s1", SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, int64(7), bypass.Coins)
}

func TestProgress_WithoutCache(t *testing.T) {
	store := newStoreWithStudent(t, 0)
	h := NewProgressHandler(store.Students(), store.Mastery(), store.Achievements(), nil, nil)

	view, err := h.Handle(context.Background(), GetProgressQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Zero(t, view.Level)
	assert.Zero(t, view.LevelProgress)
	assert.Empty(t, view.Topics)

	_, err = h.Handle(context.Background(), GetProgressQuery{StudentID: "ghost"})
	assert.True(t, shared.IsNotFound(err))
}
