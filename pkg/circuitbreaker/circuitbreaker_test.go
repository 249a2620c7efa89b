package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errDown = errors.New("downstream unavailable")

func failing(context.Context) error   { return errDown }
func succeeding(context.Context) error { return nil }

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := New("test", WithFailureThreshold(2), WithTimeout(time.Minute))
	ctx := context.Background()

	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, failing), errDown)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var transitions []State

	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(1),
		WithTimeout(10*time.Second),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	assert.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	assert.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New("test", WithFailureThreshold(1), WithTimeout(time.Second))
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	now = now.Add(2 * time.Second)
	_ = cb.Execute(ctx, failing)

	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
}

func TestSinkBreaker_IgnoresCancellation(t *testing.T) {
	cb := SinkBreaker("sink", nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 5, cb.Counts().Requests)
}
