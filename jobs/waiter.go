package jobs

import (
	"context"
	"time"

	"github.com/opsforge-io/conveyor/logger"
	"github.com/opsforge-io/conveyor/transport"
)

const (
	// MaxLongPollSeconds is the server-side cap on a single long-poll call.
	MaxLongPollSeconds = 120

	// DefaultPollInterval is the fixed sleep between polls that continue.
	// It is independent of any retry backoff.
	DefaultPollInterval = 250 * time.Millisecond

	// DefaultNotFoundGrace bounds how long a "not found" answer is treated
	// as replica lag rather than genuine absence.
	DefaultNotFoundGrace = 5 * time.Second
)

// Budget bounds a wait. The zero value means "one poll, then return
// whatever the job reports". Use Unbounded to wait indefinitely.
type Budget struct {
	Total     time.Duration
	Unbounded bool
}

// Bounded returns a budget of d total wait time.
func Bounded(d time.Duration) Budget { return Budget{Total: d} }

// Unbounded returns a budget with no time limit.
func Unbounded() Budget { return Budget{Unbounded: true} }

// FetchFunc issues one status fetch, asking the server to long-poll for up
// to longPollSeconds. Callers wrap it with the retry executor; the waiter
// never retries a fetch itself.
type FetchFunc func(ctx context.Context, longPollSeconds int) (*Snapshot, error)

// Waiter polls a job until it reaches a terminal state or the budget is
// spent. One poll is in flight at a time; independent Waiter calls share
// no state.
type Waiter struct {
	log           logger.Logger
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
	pollInterval  time.Duration
	notFoundGrace time.Duration
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithLogger attaches a structured logger.
func WithLogger(log logger.Logger) WaiterOption {
	return func(w *Waiter) { w.log = log }
}

// WithPollInterval overrides the fixed sleep between continuing polls.
func WithPollInterval(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.pollInterval = d }
}

// WithNotFoundGrace overrides the replica-lag grace window.
func WithNotFoundGrace(d time.Duration) WaiterOption {
	return func(w *Waiter) { w.notFoundGrace = d }
}

// WithSleepFunc replaces the blocking inter-poll sleep. Tests use this.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) WaiterOption {
	return func(w *Waiter) { w.sleep = sleep }
}

// WithClock replaces the monotonic time source. Tests use this.
func WithClock(now func() time.Time) WaiterOption {
	return func(w *Waiter) { w.now = now }
}

// NewWaiter creates a waiter with the given options.
func NewWaiter(opts ...WaiterOption) *Waiter {
	w := &Waiter{
		sleep:         sleepContext,
		now:           time.Now,
		pollInterval:  DefaultPollInterval,
		notFoundGrace: DefaultNotFoundGrace,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait polls fetch until the job reports a terminal status or the budget
// is spent, and returns the last snapshot observed. The budget is a soft
// bound: an in-flight poll is never preempted, so the call may overshoot
// by up to one poll interval plus one fetch.
//
// A "not found" failure within the grace window is treated as replica lag
// and polled through; if the job never becomes visible before the window
// closes, Wait returns (nil, nil). Every other failure propagates
// unmodified. Elapsed time comes from the monotonic clock, so wall-clock
// adjustments cannot stretch or shrink the budget.
func (w *Waiter) Wait(ctx context.Context, fetch FetchFunc, budget Budget) (*Snapshot, error) {
	start := w.now()
	var firstNotFound time.Time

	for {
		remaining := w.remaining(start, budget)

		snapshot, err := fetch(ctx, longPollSeconds(remaining))
		switch {
		case err == nil:
			firstNotFound = time.Time{}
			if snapshot.Status.Terminal() {
				return snapshot, nil
			}
			if w.remaining(start, budget) <= 0 {
				if w.log != nil {
					w.log.Debug().
						Str("job_id", snapshot.JobID).
						Str("status", string(snapshot.Status)).
						Dur("elapsed", w.now().Sub(start)).
						Msg("wait budget spent before job completed")
				}
				return snapshot, nil
			}

		case transport.IsNotFound(err):
			if firstNotFound.IsZero() {
				firstNotFound = w.now()
			}
			if w.now().Sub(firstNotFound) > w.notFoundGrace {
				if w.log != nil {
					w.log.Warn().
						Dur("grace", w.notFoundGrace).
						Msg("job never became visible within the replica-lag grace window")
				}
				return nil, nil
			}

		default:
			return nil, err
		}

		if err := w.sleep(ctx, w.pollInterval); err != nil {
			return nil, err
		}
	}
}

// remaining computes what is left of the budget. Unbounded budgets report
// a large sentinel so the long-poll request is always at the server cap.
func (w *Waiter) remaining(start time.Time, budget Budget) time.Duration {
	if budget.Unbounded {
		return MaxLongPollSeconds * time.Second
	}
	return budget.Total - w.now().Sub(start)
}

// longPollSeconds clamps the remaining budget into the server's legal
// long-poll range. A spent budget still issues a zero-second poll so the
// final snapshot comes from the platform, not from a stale observation.
func longPollSeconds(remaining time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs > MaxLongPollSeconds {
		return MaxLongPollSeconds
	}
	return secs
}

// sleepContext blocks for d or until ctx is done.
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
