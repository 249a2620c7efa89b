// Package jobs contains the scheduled batch jobs of the progression engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/student"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/scheduler"
	"github.com/KaripeHS/BlayStorm-sub001/pkg/timeutil"
)

const ResetLapsedStreaksName = "reset_lapsed_streaks"

// StreakResetter is the store primitive the reset job runs.
type StreakResetter interface {
	ResetLapsedStreaks(ctx context.Context, before time.Time) (int64, error)
}

// ResetLapsedStreaksJob zeroes the streak of every student who missed a full
// calendar day. The live path resets lazily at the next session start; this
// job keeps stored streaks honest for readers in between. It is idempotent.
type ResetLapsedStreaksJob struct {
	students StreakResetter
	calendar timeutil.Calendar
	clock    shared.Clock
	logger   *slog.Logger
}

func NewResetLapsedStreaksJob(students StreakResetter, cal timeutil.Calendar, clock shared.Clock, logger *slog.Logger) *ResetLapsedStreaksJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResetLapsedStreaksJob{
		students: students,
		calendar: cal,
		clock:    clock,
		logger:   logger.With("job", ResetLapsedStreaksName),
	}
}

func (j *ResetLapsedStreaksJob) Name() string { return ResetLapsedStreaksName }

func (j *ResetLapsedStreaksJob) Description() string {
	return "zero current streaks of students inactive since before yesterday"
}

func (j *ResetLapsedStreaksJob) Run(ctx context.Context) (scheduler.Report, error) {
	before := student.LapsedBefore(j.calendar, j.clock.Now())
	n, err := j.students.ResetLapsedStreaks(ctx, before)
	if err != nil {
		return nil, fmt.Errorf("reset lapsed streaks: %w", err)
	}
	j.logger.Debug("streaks reset", "before", timeutil.FormatDate(before), "count", n)
	return scheduler.Report{"reset": n}, nil
}
