// Package shared contains the error kinds and domain events used across the
// progression domain packages. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds, matched with errors.Is.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidState = errors.New("invalid state")

	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLockNotAcquired        = errors.New("lock not acquired")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "student", "combo", "attempt"
	Op      string
	Kind    error // base kind for errors.Is
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches either the kind or the wrapped cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ValidationError builds a validation failure for the given domain operation.
func ValidationError(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// Student errors
var (
	ErrStudentNotFound      = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrStudentAlreadyExists = NewDomainError("student", "Create", ErrAlreadyExists, "student already exists")
	ErrInvalidStudentID     = NewDomainError("student", "Validate", ErrInvalidID, "invalid student ID")
)

// Attempt and session errors
var (
	ErrProblemNotFound     = NewDomainError("problem", "Find", ErrNotFound, "problem not found")
	ErrSessionNotFound     = NewDomainError("session", "Find", ErrNotFound, "session not found")
	ErrSessionEnded        = NewDomainError("session", "RecordAttempt", ErrValidation, "session already ended")
	ErrSessionOwnership    = NewDomainError("session", "RecordAttempt", ErrValidation, "session belongs to another student")
	ErrNegativeTimeSpent   = NewDomainError("attempt", "Validate", ErrNegativeValue, "time spent cannot be negative")
	ErrNegativeHints       = NewDomainError("attempt", "Validate", ErrNegativeValue, "hints used cannot be negative")
	ErrInvalidPointValue   = NewDomainError("problem", "Validate", ErrNegativeValue, "point value cannot be negative")
	ErrInvalidRewardPolicy = NewDomainError("reward", "Validate", ErrValueOutOfRange, "invalid reward policy")
)

// Progression errors
var (
	ErrMasteryNotFound     = NewDomainError("mastery", "Find", ErrNotFound, "topic mastery not found")
	ErrNoActiveCombo       = NewDomainError("combo", "FindActive", ErrNotFound, "no active combo")
	ErrComboAlreadyClosed  = NewDomainError("combo", "Close", ErrInvalidState, "combo already closed")
	ErrAchievementNotFound = NewDomainError("achievement", "Find", ErrNotFound, "achievement not in catalog")
	ErrSessionLockBusy     = NewDomainError("combo", "Lock", ErrLockNotAcquired, "session lock is held by another writer")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
