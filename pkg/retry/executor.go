package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/coder/quartz"

	"github.com/jzx17/goresilience/pkg/backoff"
	"github.com/jzx17/goresilience/pkg/events"
	"github.com/jzx17/goresilience/pkg/track"
	"github.com/jzx17/goresilience/pkg/types"
)

// Operation is the function type executed under retry
type Operation[T any] func(ctx context.Context) (T, error)

// Error is the terminal failure of a retried operation. It records the
// attempts used and wraps the error from the final attempt; intermediate
// errors are not carried.
type Error struct {
	Service  string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("service %s: giving up after %d attempt(s): %v", e.Service, e.Attempts, e.Err)
}

// Unwrap returns the final attempt's error
func (e *Error) Unwrap() error {
	return e.Err
}

// Executor drives the attempt loop for individual operations. It holds
// no per-operation state, so one executor may run any number of
// operations concurrently.
type Executor struct {
	clock   quartz.Clock
	sink    events.Sink
	tracker *track.Tracker
	randSrc rand.Source
}

// Option is a configuration option for the executor
type Option func(*Executor)

// WithClock overrides the time source, for tests
func WithClock(clock quartz.Clock) Option {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSink sets the sink receiving lifecycle events
func WithSink(sink events.Sink) Option {
	return func(e *Executor) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithTracker reports every execution into tracker, enabling history,
// statistics and external cancellation
func WithTracker(tracker *track.Tracker) Option {
	return func(e *Executor) {
		e.tracker = tracker
	}
}

// WithRandSource seeds the jitter applied to backoff delays, making
// delay sequences reproducible in tests
func WithRandSource(src rand.Source) Option {
	return func(e *Executor) {
		e.randSrc = src
	}
}

// NewExecutor creates a retry executor
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		clock: quartz.NewReal(),
		sink:  events.NopSink{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs op under policy with the default service label
func Execute[T any](e *Executor, ctx context.Context, policy Policy, op Operation[T]) (T, error) {
	return ExecuteWithName(e, ctx, DefaultService, policy, op)
}

// ExecuteWithName runs op under policy until it succeeds, exhausts its
// attempts or fails with a non-retryable error. service labels the
// operation in events, metrics and history.
//
// A failed run returns an *Error wrapping the error from the final
// attempt; intermediate errors are observable only through the OnRetry
// hook, the event sink and the tracker. Cancelling ctx aborts a pending
// backoff wait immediately and returns the context error.
func ExecuteWithName[T any](e *Executor, ctx context.Context, service string, policy Policy, op Operation[T]) (T, error) {
	var zero T
	p := policy.withDefaults()
	strategy := e.newStrategy(p)

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var opID string
	if e.tracker != nil {
		opID = e.tracker.Begin(service, cancel)
	}

	start := e.clock.Now()

	for attempt := 1; ; attempt++ {
		if err := opCtx.Err(); err != nil {
			return zero, e.abort(p, service, opID, attempt-1, start, err)
		}

		if e.tracker != nil {
			e.tracker.MarkAttempt(opID)
		}

		value, err := op(opCtx)
		if err == nil {
			duration := e.clock.Since(start)
			if p.OnSuccess != nil {
				p.OnSuccess(attempt, duration)
			}
			if e.tracker != nil {
				e.tracker.Complete(opID, nil)
			}
			e.sink.Emit(events.Event{
				Type:        events.OperationSucceeded,
				Service:     service,
				OperationID: opID,
				Attempt:     attempt,
				Duration:    duration,
				At:          e.clock.Now(),
			})
			return value, nil
		}

		if !p.ShouldRetry(err, attempt) {
			finalErr := &Error{Service: service, Attempts: attempt, Err: err}
			if p.OnFailure != nil {
				p.OnFailure(attempt, err)
			}
			if e.tracker != nil {
				e.tracker.Complete(opID, finalErr)
			}
			e.sink.Emit(events.Event{
				Type:        events.OperationFailed,
				Service:     service,
				OperationID: opID,
				Attempt:     attempt,
				Duration:    e.clock.Since(start),
				Err:         finalErr,
				At:          e.clock.Now(),
			})
			return zero, finalErr
		}

		delay := strategy.NextDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		e.sink.Emit(events.Event{
			Type:        events.AttemptScheduled,
			Service:     service,
			OperationID: opID,
			Attempt:     attempt + 1,
			Delay:       delay,
			Err:         err,
			At:          e.clock.Now(),
		})

		if delay > 0 {
			timer := e.clock.NewTimer(delay)
			select {
			case <-opCtx.Done():
				timer.Stop()
				return zero, e.abort(p, service, opID, attempt, start, opCtx.Err())
			case <-timer.C:
			}
		}
	}
}

// ExecuteAsync runs op under policy asynchronously with the default
// service label
func ExecuteAsync[T any](e *Executor, ctx context.Context, policy Policy, op Operation[T]) <-chan types.Result[T] {
	return ExecuteAsyncWithName(e, ctx, DefaultService, policy, op)
}

// ExecuteAsyncWithName runs op under policy on its own goroutine and
// delivers the outcome on the returned channel
func ExecuteAsyncWithName[T any](e *Executor, ctx context.Context, service string, policy Policy, op Operation[T]) <-chan types.Result[T] {
	resultChan := make(chan types.Result[T], 1)

	go func() {
		defer close(resultChan)

		start := e.clock.Now()
		value, err := ExecuteWithName(e, ctx, service, policy, op)
		resultChan <- types.Result[T]{
			Value:    value,
			Error:    err,
			Duration: e.clock.Since(start),
		}
	}()

	return resultChan
}

// abort finalizes a cancelled operation: the hooks, tracker and sink see
// the context error and the caller receives it unchanged
func (e *Executor) abort(p Policy, service, opID string, attempts int, start time.Time, err error) error {
	if p.OnFailure != nil {
		p.OnFailure(attempts, err)
	}
	if e.tracker != nil {
		e.tracker.Complete(opID, err)
	}
	e.sink.Emit(events.Event{
		Type:        events.OperationFailed,
		Service:     service,
		OperationID: opID,
		Attempt:     attempts,
		Duration:    e.clock.Since(start),
		Err:         err,
		At:          e.clock.Now(),
	})
	return err
}

// newStrategy builds the backoff strategy for one execution of p
func (e *Executor) newStrategy(p Policy) backoff.Strategy {
	opts := []backoff.StrategyOption{
		backoff.WithMultiplier(p.Multiplier),
		backoff.WithMaxDelay(p.MaxDelay),
		backoff.WithJitter(p.Jitter),
	}
	if e.randSrc != nil {
		opts = append(opts, backoff.WithRandSource(e.randSrc))
	}
	return backoff.NewExponential(p.BaseDelay, opts...)
}
