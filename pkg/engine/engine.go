// Package engine composes the retry executor, the circuit breaker
// registry, the operation tracker and the event sinks into a single
// resilience facade. Callers execute operations through it either plain
// or guarded by a named circuit breaker.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"

	"github.com/jzx17/goresilience/pkg/breaker"
	"github.com/jzx17/goresilience/pkg/events"
	"github.com/jzx17/goresilience/pkg/retry"
	"github.com/jzx17/goresilience/pkg/track"
	"github.com/jzx17/goresilience/pkg/types"
)

// Engine is the resilience facade. All methods are safe for concurrent
// use; a closed engine refuses new executions but leaves statistics and
// history readable.
type Engine struct {
	policy          retry.Policy
	servicePolicies map[string]retry.Policy
	executor        *retry.Executor
	registry        *breaker.Registry
	tracker         *track.Tracker
	sink            events.Sink
	clock           quartz.Clock
	randSrc         rand.Source

	historyCapacity int

	closed    int32 // atomic, non-zero once Close ran
	closeOnce sync.Once
}

// Option is a configuration option for the engine
type Option func(*Engine)

// WithDefaultPolicy sets the policy used by Execute and ExecuteGuarded
// when the caller does not supply one
func WithDefaultPolicy(policy retry.Policy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithServicePolicy installs a default policy for a single service, used
// by ExecuteGuarded when the caller does not pass a policy explicitly.
// An explicit policy always wins over a service default.
func WithServicePolicy(service string, policy retry.Policy) Option {
	return func(e *Engine) {
		e.servicePolicies[service] = policy
	}
}

// WithSink sets the sink receiving all lifecycle events. Compose
// multiple observers with events.NewMultiSink.
func WithSink(sink events.Sink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithClock overrides the time source for the executor, tracker and
// breakers, for tests
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithHistoryCapacity overrides the retained history size
func WithHistoryCapacity(capacity int) Option {
	return func(e *Engine) {
		if capacity > 0 {
			e.historyCapacity = capacity
		}
	}
}

// WithRandSource seeds the jitter applied to backoff delays
func WithRandSource(src rand.Source) Option {
	return func(e *Engine) {
		e.randSrc = src
	}
}

// New creates an engine with no registered circuit breakers
func New(opts ...Option) *Engine {
	e := &Engine{
		policy:          retry.DefaultPolicy(),
		servicePolicies: make(map[string]retry.Policy),
		sink:            events.NopSink{},
		clock:           quartz.NewReal(),
		historyCapacity: track.DefaultHistoryCapacity,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.tracker = track.NewTracker(
		track.WithClock(e.clock),
		track.WithHistoryCapacity(e.historyCapacity),
	)

	executorOpts := []retry.Option{
		retry.WithClock(e.clock),
		retry.WithSink(e.sink),
		retry.WithTracker(e.tracker),
	}
	if e.randSrc != nil {
		executorOpts = append(executorOpts, retry.WithRandSource(e.randSrc))
	}
	e.executor = retry.NewExecutor(executorOpts...)

	e.registry = breaker.NewRegistry(
		breaker.WithRegistryClock(e.clock),
		breaker.WithRegistrySink(e.sink),
	)

	return e
}

// Execute runs op under the engine's default policy
func Execute[T any](e *Engine, ctx context.Context, op retry.Operation[T]) (T, error) {
	return ExecuteWithPolicy(e, ctx, e.policy, op)
}

// ExecuteWithPolicy runs op under the given policy, without consulting
// any circuit breaker
func ExecuteWithPolicy[T any](e *Engine, ctx context.Context, policy retry.Policy, op retry.Operation[T]) (T, error) {
	var zero T
	if e.isClosed() {
		return zero, types.ErrEngineClosed
	}
	return retry.Execute(e.executor, ctx, policy, op)
}

// ExecuteGuarded runs op gated by the circuit breaker registered for
// service, under the service's default policy when one was installed
// with WithServicePolicy and the engine-wide default otherwise
func ExecuteGuarded[T any](e *Engine, ctx context.Context, service string, op retry.Operation[T]) (T, error) {
	return ExecuteGuardedWithPolicy(e, ctx, service, e.policyFor(service), op)
}

// ExecuteGuardedWithPolicy runs op gated by the circuit breaker
// registered for service. The breaker sees only the aggregate outcome of
// the retried operation: one success or one failure per call, no matter
// how many attempts the executor made. An unregistered service is a
// configuration error, and a rejection by an open breaker returns a
// types.ErrCircuitOpen error without invoking op.
func ExecuteGuardedWithPolicy[T any](e *Engine, ctx context.Context, service string, policy retry.Policy, op retry.Operation[T]) (T, error) {
	var zero T
	if e.isClosed() {
		return zero, types.ErrEngineClosed
	}

	b, ok := e.registry.Get(service)
	if !ok {
		return zero, fmt.Errorf("service %s: %w", service, types.ErrServiceNotRegistered)
	}

	if err := b.Allow(); err != nil {
		return zero, err
	}

	value, err := retry.ExecuteWithName(e.executor, ctx, service, policy, op)
	if countsForBreaker(err) {
		b.Record(err)
	}
	return value, err
}

// policyFor returns the default policy for a service. The map is
// populated only during New, so no locking is needed.
func (e *Engine) policyFor(service string) retry.Policy {
	if p, ok := e.servicePolicies[service]; ok {
		return p
	}
	return e.policy
}

// countsForBreaker reports whether an aggregate outcome should feed the
// breaker's counters. External cancellations say nothing about the
// service's health, so aborted operations leave the breaker untouched.
func countsForBreaker(err error) bool {
	if err == nil {
		return true
	}
	return types.KindOf(err) != types.KindAborted
}

// RegisterCircuitBreaker creates a circuit breaker for service in the
// closed state. Registering a service twice returns
// types.ErrServiceAlreadyRegistered.
func (e *Engine) RegisterCircuitBreaker(service string, config breaker.Config) error {
	if e.isClosed() {
		return types.ErrEngineClosed
	}
	_, err := e.registry.Register(service, config)
	return err
}

// ResetCircuitBreaker forces the breaker for service back to closed. It
// returns types.ErrServiceNotRegistered for unknown services.
func (e *Engine) ResetCircuitBreaker(service string) error {
	return e.registry.Reset(service)
}

// Statistics aggregates the operation history window and the registered
// breakers
type Statistics struct {
	Operations track.Stats
	Breakers   []breaker.Snapshot
}

// Stats returns a point-in-time aggregation of operation outcomes and
// breaker states
func (e *Engine) Stats() Statistics {
	return Statistics{
		Operations: e.tracker.Stats(),
		Breakers:   e.registry.Snapshots(),
	}
}

// History returns up to limit completed operation records, newest first.
// A non-positive limit returns the full retained window.
func (e *Engine) History(limit int) []track.Record {
	return e.tracker.History(limit)
}

// CancelAll aborts every in-flight operation, best-effort, and returns
// how many were signalled. It is safe to call repeatedly.
func (e *Engine) CancelAll() int {
	return e.tracker.CancelAll()
}

// Close shuts the engine down: subsequent executions are refused with
// types.ErrEngineClosed and all in-flight operations are cancelled
// best-effort. Close is idempotent.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		atomic.StoreInt32(&e.closed, 1)
		e.tracker.CancelAll()
	})
	return nil
}

func (e *Engine) isClosed() bool {
	return atomic.LoadInt32(&e.closed) != 0
}
