package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/application/command"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/combo"
	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/shared"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/scheduler"
)

const CloseStaleCombosName = "close_stale_combos"

// ComboCloser closes one session's combo under the session lock.
type ComboCloser interface {
	Close(ctx context.Context, studentID, sessionID string) (*command.ComboResult, error)
}

// CloseStaleCombosConfig tunes the sweep.
type CloseStaleCombosConfig struct {
	// IdleTTL is how long a combo may go without an answer.
	IdleTTL time.Duration
	// BatchSize bounds the combos closed per run.
	BatchSize int
}

func DefaultCloseStaleCombosConfig() CloseStaleCombosConfig {
	return CloseStaleCombosConfig{
		IdleTTL:   30 * time.Minute,
		BatchSize: 500,
	}
}

// CloseStaleCombosJob ends combos abandoned without an EndSession. Each close
// goes through the tracker so it serializes with live answers and emits the
// same combo.ended event.
type CloseStaleCombosJob struct {
	combos    combo.Repository
	closer    ComboCloser
	publisher shared.EventPublisher
	clock     shared.Clock
	config    CloseStaleCombosConfig
	logger    *slog.Logger
}

func NewCloseStaleCombosJob(
	combos combo.Repository,
	closer ComboCloser,
	publisher shared.EventPublisher,
	clock shared.Clock,
	config CloseStaleCombosConfig,
	logger *slog.Logger,
) *CloseStaleCombosJob {
	if config.IdleTTL <= 0 {
		config.IdleTTL = DefaultCloseStaleCombosConfig().IdleTTL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultCloseStaleCombosConfig().BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloseStaleCombosJob{
		combos:    combos,
		closer:    closer,
		publisher: publisher,
		clock:     clock,
		config:    config,
		logger:    logger.With("job", CloseStaleCombosName),
	}
}

func (j *CloseStaleCombosJob) Name() string { return CloseStaleCombosName }

func (j *CloseStaleCombosJob) Description() string {
	return fmt.Sprintf("close combos idle for more than %s", j.config.IdleTTL)
}

// Run closes one batch. A failure on one combo is logged and the sweep goes
// on; the joined error is returned at the end.
func (j *CloseStaleCombosJob) Run(ctx context.Context) (scheduler.Report, error) {
	idleSince := j.clock.Now().Add(-j.config.IdleTTL)
	stale, err := j.combos.ListIdle(ctx, idleSince, j.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("list idle combos: %w", err)
	}

	report := scheduler.Report{"found": int64(len(stale)), "closed": 0, "announced": 0}
	var errs []error
	for _, c := range stale {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		res, err := j.closer.Close(ctx, c.StudentID, c.SessionID)
		if err != nil {
			j.logger.Warn("close combo failed", "student_id", c.StudentID, "session_id", c.SessionID, "error", err)
			errs = append(errs, err)
			continue
		}
		if res.Transition.Closed == nil {
			// An answer or EndSession got there first.
			continue
		}
		report["closed"]++
		if res.Transition.Notable {
			report["announced"]++
		}
		j.publish(res.Events)
	}
	return report, errors.Join(errs...)
}

func (j *CloseStaleCombosJob) publish(events []shared.Event) {
	if j.publisher == nil {
		return
	}
	for _, e := range events {
		if err := j.publisher.Publish(e); err != nil {
			j.logger.Warn("publish event failed", "event_type", e.EventType(), "error", err)
		}
	}
}
