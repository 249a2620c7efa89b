package activity

import (
	"context"
	"time"
)

// AttemptRepository is the append-only attempt log.
type AttemptRepository interface {
	// CountForProblem returns how many attempts the student already made on
	// the problem.
	CountForProblem(ctx context.Context, studentID, problemID string) (int, error)

	// Append inserts an attempt. Attempts are never updated.
	Append(ctx context.Context, a *Attempt) error

	// Recent returns up to limit of the student's latest attempts, newest first.
	Recent(ctx context.Context, studentID string, limit int) ([]*Attempt, error)
}

// SessionRepository stores practice sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error

	// GetByID returns ErrSessionNotFound if the session does not exist.
	GetByID(ctx context.Context, id string) (*Session, error)

	// ApplyDelta increments the session counters in place.
	ApplyDelta(ctx context.Context, id string, d SessionDelta) error

	// End sets EndedAt if the session is still open. ended is false when it
	// was already closed.
	End(ctx context.Context, id string, at time.Time) (ended bool, err error)
}

// ProblemCatalog resolves problem metadata.
type ProblemCatalog interface {
	// GetProblem returns ErrProblemNotFound for an unknown ID.
	GetProblem(ctx context.Context, id string) (*Problem, error)
}
