package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaripeHS/BlayStorm-sub001/config"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/command"
	"github.com/KaripeHS/BlayStorm-sub001/internal/application/query"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/activity"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/persistence/memory"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/scheduler/jobs"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("BLAYSTORM_APP_STORE", "memory")
	t.Setenv("BLAYSTORM_REDIS_DISABLED", "true")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestNew_MemoryStoreEndToEnd(t *testing.T) {
	cfg := memoryConfig(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := shared.ClockFunc(func() time.Time { return now })

	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Clock: clock})
	require.NoError(t, err)
	defer a.Close()

	store, ok := a.Store.(*memory.Store)
	require.True(t, ok)
	store.PutProblem(&activity.Problem{ID: "p1", Topic: "fractions", Difficulty: 3, PointValue: 10})

	ctx := context.Background()
	_, err = a.RegisterStudent.Handle(ctx, command.RegisterStudentCommand{StudentID: "s1"})
	require.NoError(t, err)
	started, err := a.StartSession.Handle(ctx, command.StartSessionCommand{StudentID: "s1"})
	require.NoError(t, err)

	res, err := a.RecordAttempt.Handle(ctx, command.RecordAttemptCommand{
		StudentID: "s1",
		SessionID: started.Session.ID,
		ProblemID: "p1",
		IsCorrect: true,
	})
	require.NoError(t, err)
	assert.Positive(t, res.XPEarned)

	view, err := a.Progress.Handle(ctx, query.GetProgressQuery{StudentID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, res.NewTotalXP, view.TotalXP)

	jobNames := []string{}
	for _, j := range a.Scheduler.ListJobs() {
		jobNames = append(jobNames, j.Name)
	}
	assert.Equal(t, []string{jobs.CloseStaleCombosName, jobs.ResetLapsedStreaksName}, jobNames)

	result, err := a.RunJob(ctx, jobs.ResetLapsedStreaksName)
	require.NoError(t, err)
	assert.Zero(t, result.Report["reset"])

	_, err = a.RunJob(ctx, "rebuild_everything")
	assert.ErrorContains(t, err, "available: close_stale_combos, reset_lapsed_streaks")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, slogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, slogLevel("warning"))
	assert.Equal(t, slog.LevelInfo, slogLevel(""))
}
