package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int32) *Policy {
	return NewPolicy(
		WithInitialInterval(time.Millisecond),
		WithMaximumInterval(2*time.Millisecond),
		WithMaxAttempts(attempts),
	)
}

func TestNewPolicyDefaults(t *testing.T) {
	p := NewPolicy()
	assert.Equal(t, time.Second, p.InitialInterval)
	assert.Equal(t, 2.0, p.BackoffCoefficient)
	assert.Equal(t, 100*time.Second, p.MaximumInterval)
	assert.Equal(t, int32(3), p.MaximumAttempts)
}

func TestExecuteRetriesUntilSuccess(t *testing.T) {
	var notified []int
	exec := NewExecutor(fastPolicy(3), WithNotify(func(err error, attempt int) {
		notified = append(notified, attempt)
	}))

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("rate limited")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestExecuteStopsAfterMaxAttempts(t *testing.T) {
	exec := NewExecutor(fastPolicy(2))

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		return errors.New("unavailable")
	})

	assert.EqualError(t, err, "unavailable")
	assert.Equal(t, 2, calls)
}

func TestExecutePermanentErrorIsNotRetried(t *testing.T) {
	exec := NewExecutor(fastPolicy(5))
	sentinel := errors.New("bad request")

	calls := 0
	err := exec.Execute(context.Background(), func() error {
		calls++
		return Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestExecuteHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecutor(fastPolicy(5))
	calls := 0
	err := exec.Execute(ctx, func() error {
		calls++
		return errors.New("unavailable")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestBackOffSchedule(t *testing.T) {
	single := NewPolicy(WithMaxAttempts(1)).backOff(context.Background())
	assert.Equal(t, backoff.Stop, single.NextBackOff())

	// invalid values fall back to the library defaults instead of a zero wait
	b := NewPolicy(WithInitialInterval(0), WithBackoffCoefficient(0.5), WithMaxAttempts(2)).backOff(context.Background())
	assert.Greater(t, b.NextBackOff(), time.Duration(0))
	assert.Equal(t, backoff.Stop, b.NextBackOff())
}
