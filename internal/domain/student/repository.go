package student

import (
	"context"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/internal/domain/reward"
)

// Repository persists student state.
//
// Implementations must apply ApplyDelta as in-store increments so concurrent
// attempts for the same student never lose updates.
type Repository interface {
	// Create returns ErrStudentAlreadyExists for a duplicate ID.
	Create(ctx context.Context, s *State) error

	// GetByID returns ErrStudentNotFound if the student does not exist.
	GetByID(ctx context.Context, id string) (*State, error)

	// GetForUpdate reads the state and, inside a transaction, locks the row
	// until commit.
	GetForUpdate(ctx context.Context, id string) (*State, error)

	// ApplyDelta increments counters, recomputes the derived level fields and
	// returns the new state with the level transition.
	ApplyDelta(ctx context.Context, id string, d Delta) (*State, LevelChange, error)

	// SaveStreak overwrites the streak fields.
	SaveStreak(ctx context.Context, id string, st Streak) error

	// AddItems adds inventory items granted by a reward.
	AddItems(ctx context.Context, id string, items []reward.ItemRef) error

	// ResetLapsedStreaks zeroes the current streak of every student whose last
	// active day is before the given day value. Returns the number reset.
	ResetLapsedStreaks(ctx context.Context, before time.Time) (int64, error)
}
