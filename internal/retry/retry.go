// Package retry runs fallible operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/incident-ingest-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Policy bounds how often and how long an operation is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	// InitialDelay is the wait before the first retry; it doubles per retry.
	InitialDelay time.Duration
	// MaxTotalDelay caps the cumulative wait. Zero means uncapped.
	MaxTotalDelay time.Duration
}

// DefaultPolicy retries three times starting at one second.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, InitialDelay: time.Second}
}

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Operation string
	Number    int // 1-based attempt that failed
	Remaining int // retries left after this one
	Delay     time.Duration
	Err       error
}

// Executor carries the policy and collaborators shared by retried calls.
type Executor struct {
	policy  Policy
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	onRetry func(Attempt)
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock sets the clock used for backoff waits.
func WithClock(c clockwork.Clock) Option {
	return func(e *Executor) { e.clock = c }
}

// WithMetrics records retry attempts per operation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithOnRetry registers a hook called before each retry wait.
func WithOnRetry(fn func(Attempt)) Option {
	return func(e *Executor) { e.onRetry = fn }
}

// New creates an Executor with the given policy.
func New(policy Policy, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		policy: policy,
		clock:  clockwork.NewRealClock(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithPolicy returns a copy of the executor using a different policy.
func (e *Executor) WithPolicy(p Policy) *Executor {
	cp := *e
	cp.policy = p
	return &cp
}

// Policy returns the executor's policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err so that Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, the retry budget or delay cap is exhausted,
// or ctx is cancelled. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, e *Executor, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := e.policy.InitialDelay
	var waited time.Duration

	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}

		remaining := e.policy.MaxRetries - (attempt - 1)
		if remaining <= 0 {
			return zero, err
		}
		if e.policy.MaxTotalDelay > 0 && waited+delay > e.policy.MaxTotalDelay {
			e.logger.Warn("retry delay budget exhausted",
				"operation", name, "attempt", attempt, "waited", waited, "error", err)
			return zero, err
		}

		e.logger.Warn("operation failed, retrying",
			"operation", name,
			"attempt", attempt,
			"retries_left", remaining-1,
			"delay", delay,
			"error", err,
		)
		if e.metrics != nil {
			e.metrics.RetryAttempts.WithLabelValues(name).Inc()
		}
		if e.onRetry != nil {
			e.onRetry(Attempt{Operation: name, Number: attempt, Remaining: remaining - 1, Delay: delay, Err: err})
		}

		if !sleepWithContext(ctx, e.clock, delay) {
			return zero, fmt.Errorf("%s: %w", name, errors.Join(err, ctx.Err()))
		}
		waited += delay
		delay *= 2
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, e *Executor, name string, op func(context.Context) error) error {
	_, err := Do(ctx, e, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
