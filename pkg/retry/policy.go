package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how a failed model or embedding call is retried.
// Rate limits from the providers usually clear within a few seconds, so the
// defaults start at one second and double up to a cap of 100s.
type Policy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	// MaximumAttempts counts the first call; 1 disables retries, 0 retries
	// until the context is done
	MaximumAttempts int32
}

// Option mutates a Policy
type Option func(*Policy)

func WithInitialInterval(interval time.Duration) Option {
	return func(p *Policy) { p.InitialInterval = interval }
}

func WithBackoffCoefficient(coefficient float64) Option {
	return func(p *Policy) { p.BackoffCoefficient = coefficient }
}

func WithMaximumInterval(interval time.Duration) Option {
	return func(p *Policy) { p.MaximumInterval = interval }
}

// WithMaxAttempts caps the number of calls, including the first one
func WithMaxAttempts(attempts int32) Option {
	return func(p *Policy) { p.MaximumAttempts = attempts }
}

// NewPolicy returns the default policy with opts applied
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		InitialInterval:    time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    100 * time.Second,
		MaximumAttempts:    3,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// backOff builds the schedule for one Execute call. Elapsed time is never a
// limit; attempts and ctx are.
func (p *Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.BackoffCoefficient >= 1 {
		exp.Multiplier = p.BackoffCoefficient
	}
	if p.MaximumInterval > 0 {
		exp.MaxInterval = p.MaximumInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaximumAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaximumAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}
