package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Executor runs operations under a Policy
type Executor struct {
	policy *Policy
	notify func(err error, attempt int)
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithNotify registers a callback invoked after each failed attempt that will be retried
func WithNotify(fn func(err error, attempt int)) ExecutorOption {
	return func(e *Executor) {
		e.notify = fn
	}
}

// NewExecutor creates an executor for the given policy; nil means NewPolicy()
func NewExecutor(policy *Policy, opts ...ExecutorOption) *Executor {
	if policy == nil {
		policy = NewPolicy()
	}
	e := &Executor{policy: policy}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Permanent marks err as non-retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Execute runs operation until it succeeds, returns a permanent error, the
// context is done, or the policy's attempts are exhausted.
func (e *Executor) Execute(ctx context.Context, operation func() error) error {
	b := e.policy.backOff(ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return operation()
	}, b, func(err error, _ time.Duration) {
		if e.notify != nil {
			e.notify(err, attempt)
		}
	})

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
