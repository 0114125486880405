// Package breaker implements per-service circuit breakers. A breaker
// observes the aggregate outcome of each guarded operation, opens after a
// run of consecutive failures, and probes recovery with trial calls after
// a cooling-off period.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/jzx17/goresilience/pkg/events"
	"github.com/jzx17/goresilience/pkg/types"
)

// State represents the state of a circuit breaker
type State int

const (
	// StateClosed means calls flow through and failures are counted
	StateClosed State = iota
	// StateOpen means calls are rejected until the open timeout elapses
	StateOpen
	// StateHalfOpen means trial calls probe whether the service recovered
	StateHalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit
	FailureThreshold int
	// SuccessThreshold is the number of consecutive trial successes that
	// closes the circuit again
	SuccessThreshold int
	// OpenTimeout is how long the circuit stays open before the next call
	// is admitted as a trial
	OpenTimeout time.Duration
	// Window is the informational monitoring window reported in snapshots
	Window time.Duration
}

// DefaultConfig returns the default breaker configuration: open after 5
// consecutive failures, close after 2 trial successes, 30s open timeout.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		Window:           60 * time.Second,
	}
}

// withDefaults fills non-positive fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = def.SuccessThreshold
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = def.OpenTimeout
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	return c
}

// Snapshot is a point-in-time view of a breaker
type Snapshot struct {
	Service       string
	State         State
	FailureCount  int
	SuccessCount  int
	LastFailureAt time.Time
	NextAttemptAt time.Time
}

// Breaker is a circuit breaker for one service. Its mutex serializes
// state transitions, so concurrent outcomes are applied in arrival order.
// Transition events are emitted outside the lock.
type Breaker struct {
	mu            sync.RWMutex
	service       string
	config        Config
	state         State
	failureCount  int
	successCount  int
	lastFailureAt time.Time
	nextAttemptAt time.Time

	clock quartz.Clock
	sink  events.Sink
}

// Option configures a Breaker
type Option func(*Breaker)

// WithClock overrides the time source, for tests
func WithClock(clock quartz.Clock) Option {
	return func(b *Breaker) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithSink sets the sink receiving transition and rejection events
func WithSink(sink events.Sink) Option {
	return func(b *Breaker) {
		if sink != nil {
			b.sink = sink
		}
	}
}

// New creates a breaker for service in the closed state. Zero config
// fields fall back to DefaultConfig.
func New(service string, config Config, opts ...Option) *Breaker {
	b := &Breaker{
		service: service,
		config:  config.withDefaults(),
		state:   StateClosed,
		clock:   quartz.NewReal(),
		sink:    events.NopSink{},
	}

	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a call may proceed. While open and before the
// eligibility deadline it returns a types.ErrCircuitOpen error and the
// guarded operation must not be invoked. The first call at or past the
// deadline moves the breaker to half-open and is admitted as a trial.
func (b *Breaker) Allow() error {
	now := b.clock.Now()

	b.mu.Lock()
	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}

	if now.Before(b.nextAttemptAt) {
		wait := b.nextAttemptAt.Sub(now)
		b.mu.Unlock()

		err := fmt.Errorf("%w: service %s eligible for trial in %s", types.ErrCircuitOpen, b.service, wait)
		b.sink.Emit(events.Event{
			Type:    events.OperationRejected,
			Service: b.service,
			Err:     err,
			At:      now,
		})
		return err
	}

	evt := b.transitionTo(StateHalfOpen, now)
	b.mu.Unlock()

	b.sink.Emit(evt)
	return nil
}

// RecordSuccess feeds a successful aggregate outcome into the state
// machine.
func (b *Breaker) RecordSuccess() {
	now := b.clock.Now()

	b.mu.Lock()
	var evt events.Event
	emit := false

	switch b.state {
	case StateClosed:
		b.failureCount = 0
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.config.SuccessThreshold {
			evt = b.transitionTo(StateClosed, now)
			emit = true
		}
	case StateOpen:
		// A straggling trial outcome. The next transition waits for an
		// admitted trial, not for late results.
	}
	b.mu.Unlock()

	if emit {
		b.sink.Emit(evt)
	}
}

// RecordFailure feeds a failed aggregate outcome into the state machine.
// A single failure while half-open reopens the circuit regardless of how
// many trial successes had accumulated.
func (b *Breaker) RecordFailure() {
	now := b.clock.Now()

	b.mu.Lock()
	b.lastFailureAt = now
	var evt events.Event
	emit := false

	switch b.state {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.config.FailureThreshold {
			evt = b.transitionTo(StateOpen, now)
			emit = true
		}
	case StateHalfOpen:
		evt = b.transitionTo(StateOpen, now)
		emit = true
	case StateOpen:
		// Late failure from a concurrent trial. Eligibility is not pushed
		// back, only the failure timestamp moves.
	}
	b.mu.Unlock()

	if emit {
		b.sink.Emit(evt)
	}
}

// Record routes err into RecordSuccess or RecordFailure. Every non-nil
// error counts as a failure; callers that need to exempt some outcomes
// use the Record methods directly.
func (b *Breaker) Record(err error) {
	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
}

// Do runs fn under the breaker: it rejects immediately while the circuit
// is open and otherwise records fn's outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}

	err := fn(ctx)
	b.Record(err)
	return err
}

// transitionTo moves the breaker to the given state, resets the counters
// that state owns, and returns the transition event for emission outside
// the lock. Callers must hold mu and must only call on an actual change.
func (b *Breaker) transitionTo(to State, now time.Time) events.Event {
	from := b.state
	b.state = to

	switch to {
	case StateClosed:
		b.failureCount = 0
		b.successCount = 0
	case StateOpen:
		b.failureCount = 0
		b.successCount = 0
		b.nextAttemptAt = now.Add(b.config.OpenTimeout)
	case StateHalfOpen:
		b.successCount = 0
	}

	var eventType events.Type
	switch to {
	case StateClosed:
		eventType = events.CircuitClosed
	case StateOpen:
		eventType = events.CircuitOpened
	case StateHalfOpen:
		eventType = events.CircuitHalfOpened
	}

	return events.Event{
		Type:    eventType,
		Service: b.service,
		From:    from.String(),
		To:      to.String(),
		At:      now,
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// Snapshot returns a point-in-time view of the breaker
func (b *Breaker) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Snapshot{
		Service:       b.service,
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		LastFailureAt: b.lastFailureAt,
		NextAttemptAt: b.nextAttemptAt,
	}
}

// Reset forces the breaker back to closed and clears its counters and
// timestamps. Resetting an already-closed breaker clears counters without
// emitting a transition.
func (b *Breaker) Reset() {
	now := b.clock.Now()

	b.mu.Lock()
	if b.state == StateClosed {
		b.failureCount = 0
		b.successCount = 0
		b.mu.Unlock()
		return
	}

	evt := b.transitionTo(StateClosed, now)
	b.lastFailureAt = time.Time{}
	b.nextAttemptAt = time.Time{}
	b.mu.Unlock()

	b.sink.Emit(evt)
}
