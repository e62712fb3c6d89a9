package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsforge-io/conveyor/logger"
	"github.com/opsforge-io/conveyor/retry"
)

// DefaultPolicy is the per-batch retry schedule used unless overridden.
var DefaultPolicy = retry.Policy{
	MaxAttempts:   3,
	BackoffBase:   500 * time.Millisecond,
	BackoffFactor: 2,
	Jitter:        0.25,
}

// Result aggregates what the platform reported for the dispatched items.
// For a fully successful dispatch, len(Processed)+len(Unprocessed) equals
// the original item count.
type Result struct {
	Processed   []json.RawMessage
	Unprocessed []json.RawMessage
}

func (r *Result) merge(other *Result) {
	r.Processed = append(r.Processed, other.Processed...)
	r.Unprocessed = append(r.Unprocessed, other.Unprocessed...)
}

// SendFunc sends one batch in a single network call and returns the
// platform's processed/unprocessed split for it.
type SendFunc func(ctx context.Context, batch []Item) (*Result, error)

// Concurrency selects the dispatch mode. Workers of 1 or less sends
// batches strictly in emission order.
type Concurrency struct {
	Workers int
}

// Sequential sends batches one at a time, in order.
func Sequential() Concurrency { return Concurrency{Workers: 1} }

// Parallel sends batches from a shared FIFO queue with up to workers
// concurrent senders.
func Parallel(workers int) Concurrency { return Concurrency{Workers: workers} }

// DispatchError carries the failure that ended a dispatch along with
// whatever partial result the other batches had already produced.
type DispatchError struct {
	BatchIndex int
	Partial    *Result
	Err        error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("batch %d failed: %v", e.BatchIndex, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Dispatcher splits item lists and sends the batches through the retry
// executor. A Dispatcher is stateless across calls and safe for
// concurrent use.
type Dispatcher struct {
	log      logger.Logger
	executor *retry.Executor
	policy   retry.Policy
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger attaches a structured logger.
func WithLogger(log logger.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = log }
}

// WithExecutor replaces the retry executor wrapping each batch send.
func WithExecutor(e *retry.Executor) DispatcherOption {
	return func(d *Dispatcher) { d.executor = e }
}

// WithPolicy replaces the per-batch retry policy.
func WithPolicy(p retry.Policy) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

// NewDispatcher creates a dispatcher with the given options.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{policy: DefaultPolicy}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch splits items per the constraints and sends every batch, each
// send wrapped by the retry executor. On an unrecovered batch failure the
// error is a *DispatchError carrying the result accumulated so far; in
// parallel mode sibling workers stop picking up new batches, though
// in-flight sends are never preempted.
func (d *Dispatcher) Dispatch(ctx context.Context, items []Item, send SendFunc, c Constraints, conc Concurrency) (*Result, error) {
	batches := Split(items, c)
	result := &Result{}
	if len(batches) == 0 {
		return result, nil
	}

	if d.log != nil {
		d.log.Debug().
			Int("items", len(items)).
			Int("batches", len(batches)).
			Int("workers", conc.Workers).
			Msg("dispatching batches")
	}

	if conc.Workers <= 1 {
		return d.dispatchSequential(ctx, batches, send, result)
	}
	return d.dispatchParallel(ctx, batches, send, result, conc.Workers)
}

func (d *Dispatcher) dispatchSequential(ctx context.Context, batches [][]Item, send SendFunc, result *Result) (*Result, error) {
	for i, b := range batches {
		r, err := d.sendWithRetry(ctx, send, b)
		if err != nil {
			return nil, &DispatchError{BatchIndex: i, Partial: result, Err: err}
		}
		result.merge(r)
	}
	return result, nil
}

func (d *Dispatcher) dispatchParallel(ctx context.Context, batches [][]Item, send SendFunc, result *Result, workers int) (*Result, error) {
	type numbered struct {
		index int
		items []Item
	}

	queue := make(chan numbered, len(batches))
	for i, b := range batches {
		queue <- numbered{index: i, items: b}
	}
	close(queue)

	if workers > len(batches) {
		workers = len(batches)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for b := range queue {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r, err := d.sendWithRetry(gctx, send, b.items)
				if err != nil {
					return &DispatchError{BatchIndex: b.index, Err: err}
				}
				mu.Lock()
				result.merge(r)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if derr, ok := err.(*DispatchError); ok {
			derr.Partial = result
			return nil, derr
		}
		return nil, &DispatchError{BatchIndex: -1, Partial: result, Err: err}
	}
	return result, nil
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, send SendFunc, b []Item) (*Result, error) {
	return retry.Do(ctx, d.executor, d.policy, func(ctx context.Context, _ int) (*Result, error) {
		return send(ctx, b)
	})
}
