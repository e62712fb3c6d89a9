// Package retry runs a single attempt function repeatedly until it
// succeeds, fails fatally, or exhausts its attempt budget, sleeping with
// exponential backoff and jitter between attempts.
//
// Classification is carried on the error value itself: any error whose
// chain implements `Retryable() bool` and reports true (transient network
// failures, rate limiting, 5xx responses from the transport package) is
// retried; everything else fails fast on first occurrence. The executor
// performs no I/O of its own.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/opsforge-io/conveyor/logger"
)

// AttemptFunc is one invocation of a remote call. The attempt ordinal is
// 1-based. The function owns the network call and the classification of
// its outcome.
type AttemptFunc[T any] func(ctx context.Context, attempt int) (T, error)

// Error wraps the failure that ended a retry loop, carrying how many
// attempts were spent. The original classification stays reachable through
// errors.As/Is.
type Error struct {
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Executor schedules attempts. The zero configuration (or a nil *Executor)
// uses a context-aware blocking sleep and a shared random source.
type Executor struct {
	log    logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	sample func() float64
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger attaches a structured logger; each retried failure is logged
// at warn level with its attempt ordinal and backoff.
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) { e.log = log }
}

// WithSleepFunc replaces the blocking sleep. Tests use this to capture
// backoff durations without waiting.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithSampleFunc replaces the jitter random source with a deterministic one.
func WithSampleFunc(sample func() float64) Option {
	return func(e *Executor) { e.sample = sample }
}

// NewExecutor creates an executor with the given options.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		sleep:  sleepContext,
		sample: rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultExecutor = NewExecutor()

// Do runs fn until it returns a value, fails fatally, or policy.MaxAttempts
// attempts are spent. A nil executor behaves like NewExecutor().
//
// A retryable failure on the last allowed attempt is propagated, never
// slept on; fatal failures propagate on first occurrence regardless of the
// remaining budget. Context cancellation during a backoff sleep ends the
// loop with both the cancellation and the last failure in the error chain.
func Do[T any](ctx context.Context, e *Executor, policy Policy, fn AttemptFunc[T]) (T, error) {
	var zero T
	if e == nil {
		e = defaultExecutor
	}
	policy = policy.normalized()

	for attempt := 1; ; attempt++ {
		value, err := fn(ctx, attempt)
		if err == nil {
			return value, nil
		}

		if !isRetryable(err) {
			if e.log != nil {
				e.log.Debug().Err(err).Int("attempt", attempt).Msg("fatal failure, not retrying")
			}
			return zero, &Error{Attempts: attempt, Err: err}
		}

		if attempt >= policy.MaxAttempts {
			if e.log != nil {
				e.log.Warn().Err(err).Int("attempts", attempt).Msg("retry budget exhausted")
			}
			return zero, &Error{Attempts: attempt, Err: err}
		}

		backoff := policy.delay(attempt, e.sample())
		if e.log != nil {
			e.log.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("retrying after failure")
		}
		if sleepErr := e.sleep(ctx, backoff); sleepErr != nil {
			return zero, &Error{Attempts: attempt, Err: errors.Join(sleepErr, err)}
		}
	}
}

// isRetryable reports whether the error chain classifies itself as
// retryable. Unclassified errors are fatal.
func isRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

// sleepContext blocks for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
