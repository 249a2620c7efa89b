package combo

import (
	"context"
	"time"
)

// Repository persists combo states. Callers serialize writes per session
// through a SessionLocker; the store additionally enforces one open state per
// (student, session).
type Repository interface {
	// GetActive returns ErrNoActiveCombo when no combo is open.
	GetActive(ctx context.Context, studentID, sessionID string) (*State, error)

	// Save inserts or updates the state by ID.
	Save(ctx context.Context, s *State) error

	// ListIdle returns open combos not updated since the given time.
	ListIdle(ctx context.Context, idleSince time.Time, limit int) ([]*State, error)
}

// SessionLocker serializes combo writers for one session key.
type SessionLocker interface {
	// Lock blocks until the key is held or ctx is done. The returned function
	// releases the lock.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LockKey returns the lock key for a student's session.
func LockKey(studentID, sessionID string) string {
	return studentID + ":" + sessionID
}
