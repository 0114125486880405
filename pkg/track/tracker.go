// Package track maintains the registry of in-flight operations and a
// bounded, newest-first history of completed ones. The retry executor
// reports into a Tracker; callers read it for introspection, aggregate
// statistics and best-effort cancellation.
package track

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// DefaultHistoryCapacity is the number of completed records retained
// unless overridden with WithHistoryCapacity.
const DefaultHistoryCapacity = 100

// Operation describes one tracked execution
type Operation struct {
	ID            string
	Service       string
	Attempts      int
	StartedAt     time.Time
	LastAttemptAt time.Time

	cancel context.CancelFunc
}

// Record is the retained summary of a completed operation
type Record struct {
	OperationID string
	Service     string
	Success     bool
	Attempts    int
	Duration    time.Duration
	Err         string
	EndedAt     time.Time
}

// Stats aggregates the retained history window and the in-flight registry
type Stats struct {
	InFlight        int
	Completed       int
	Succeeded       int
	Failed          int
	SuccessRate     float64
	AverageAttempts float64
}

// Tracker records operation lifecycles. All methods are safe for
// concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	inflight map[string]*Operation
	history  []Record // newest first
	capacity int
	clock    quartz.Clock
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithHistoryCapacity overrides the retained history size. Non-positive
// values are ignored.
func WithHistoryCapacity(capacity int) TrackerOption {
	return func(t *Tracker) {
		if capacity > 0 {
			t.capacity = capacity
		}
	}
}

// WithClock overrides the time source, for tests
func WithClock(clock quartz.Clock) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker creates an empty tracker
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		inflight: make(map[string]*Operation),
		capacity: DefaultHistoryCapacity,
		clock:    quartz.NewReal(),
	}

	for _, opt := range opts {
		opt(t)
	}

	t.history = make([]Record, 0, t.capacity)
	return t
}

// Begin registers a new in-flight operation for service and returns its
// generated id. cancel is invoked by Cancel or CancelAll to abort the
// operation; it may be nil when the operation cannot be aborted.
func (t *Tracker) Begin(service string, cancel context.CancelFunc) string {
	op := &Operation{
		ID:        uuid.NewString(),
		Service:   service,
		StartedAt: t.clock.Now(),
		cancel:    cancel,
	}

	t.mu.Lock()
	t.inflight[op.ID] = op
	t.mu.Unlock()

	return op.ID
}

// MarkAttempt records that the operation is starting its next attempt.
// Unknown ids are ignored.
func (t *Tracker) MarkAttempt(id string) {
	now := t.clock.Now()

	t.mu.Lock()
	if op, ok := t.inflight[id]; ok {
		op.Attempts++
		op.LastAttemptAt = now
	}
	t.mu.Unlock()
}

// Complete removes the operation from the in-flight registry and prepends
// its summary to the history. A nil err marks success. Completing an
// unknown id is a no-op.
func (t *Tracker) Complete(id string, err error) {
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.inflight[id]
	if !ok {
		return
	}
	delete(t.inflight, id)

	record := Record{
		OperationID: id,
		Service:     op.Service,
		Success:     err == nil,
		Attempts:    op.Attempts,
		Duration:    now.Sub(op.StartedAt),
		EndedAt:     now,
	}
	if err != nil {
		record.Err = err.Error()
	}
	t.prepend(record)
}

// prepend inserts r at index 0, evicting the oldest record once the
// window is full. Callers must hold mu.
func (t *Tracker) prepend(r Record) {
	if len(t.history) < t.capacity {
		t.history = append(t.history, Record{})
	}
	copy(t.history[1:], t.history)
	t.history[0] = r
}

// Cancel aborts a single in-flight operation and reports whether the id
// was found. The operation stays registered until its executor observes
// the cancellation and completes it.
func (t *Tracker) Cancel(id string) bool {
	t.mu.RLock()
	op, ok := t.inflight[id]
	t.mu.RUnlock()

	if !ok {
		return false
	}
	if op.cancel != nil {
		op.cancel()
	}
	return true
}

// CancelAll aborts every in-flight operation and returns how many were
// signalled. Cancelling an already-completed operation is a no-op, so
// repeated calls are safe.
func (t *Tracker) CancelAll() int {
	t.mu.RLock()
	count := len(t.inflight)
	cancels := make([]context.CancelFunc, 0, count)
	for _, op := range t.inflight {
		if op.cancel != nil {
			cancels = append(cancels, op.cancel)
		}
	}
	t.mu.RUnlock()

	for _, cancel := range cancels {
		cancel()
	}
	return count
}

// InFlight returns a snapshot of the currently registered operations
func (t *Tracker) InFlight() []Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ops := make([]Operation, 0, len(t.inflight))
	for _, op := range t.inflight {
		ops = append(ops, Operation{
			ID:            op.ID,
			Service:       op.Service,
			Attempts:      op.Attempts,
			StartedAt:     op.StartedAt,
			LastAttemptAt: op.LastAttemptAt,
		})
	}
	return ops
}

// History returns up to limit completed records, newest first. A
// non-positive limit, or one beyond the retained window, returns the full
// window.
func (t *Tracker) History(limit int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if limit <= 0 || limit > len(t.history) {
		limit = len(t.history)
	}
	out := make([]Record, limit)
	copy(out, t.history[:limit])
	return out
}

// Stats aggregates the retained history window. Rates are zero while the
// window is empty.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		InFlight:  len(t.inflight),
		Completed: len(t.history),
	}

	var attempts int
	for _, r := range t.history {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
		attempts += r.Attempts
	}

	if s.Completed > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(s.Completed)
		s.AverageAttempts = float64(attempts) / float64(s.Completed)
	}
	return s
}
