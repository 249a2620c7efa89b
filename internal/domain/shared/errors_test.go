package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Kinds(t *testing.T) {
	assert.True(t, IsNotFound(ErrStudentNotFound))
	assert.True(t, IsNotFound(ErrProblemNotFound))
	assert.False(t, IsValidation(ErrStudentNotFound))

	assert.True(t, IsValidation(ErrNegativeTimeSpent))
	assert.True(t, IsValidation(ErrSessionEnded))
	assert.True(t, IsValidation(ValidationError("attempt", "Validate", "bad")))
}

func TestDomainError_Wrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("student", "ApplyDelta", ErrServiceUnavailable, "store unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, "student.ApplyDelta: store unavailable: connection reset", err.Error())

	outer := fmt.Errorf("record attempt: %w", ErrSessionNotFound)
	assert.True(t, IsNotFound(outer))
	var de *DomainError
	assert.True(t, errors.As(outer, &de))
	assert.Equal(t, "session", de.Domain)
}
