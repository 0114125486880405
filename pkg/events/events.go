// Package events defines the notification boundary between the resilience
// engine and its observers. The engine emits lifecycle events through the
// Sink interface and never depends on a concrete logging, metrics or UI
// mechanism.
package events

import "time"

// Type identifies a lifecycle event
type Type int

const (
	// AttemptScheduled is emitted when a retry wait begins
	AttemptScheduled Type = iota

	// OperationSucceeded is emitted when an operation completes successfully
	OperationSucceeded

	// OperationFailed is emitted when an operation exhausts its attempts or
	// hits a non-retryable failure
	OperationFailed

	// OperationRejected is emitted when an open circuit fails a call fast
	OperationRejected

	// CircuitOpened is emitted when a breaker trips open
	CircuitOpened

	// CircuitClosed is emitted when a breaker recovers to closed
	CircuitClosed

	// CircuitHalfOpened is emitted when a breaker begins trial calls
	CircuitHalfOpened
)

// String returns the string representation of the event type
func (t Type) String() string {
	switch t {
	case AttemptScheduled:
		return "attempt-scheduled"
	case OperationSucceeded:
		return "operation-succeeded"
	case OperationFailed:
		return "operation-failed"
	case OperationRejected:
		return "operation-rejected"
	case CircuitOpened:
		return "circuit-opened"
	case CircuitClosed:
		return "circuit-closed"
	case CircuitHalfOpened:
		return "circuit-half-opened"
	default:
		return "unknown"
	}
}

// Event carries the context of a lifecycle notification. Fields are
// populated per type: Attempt is the upcoming attempt number and Delay the
// wait preceding it for AttemptScheduled; Attempt is the attempts used and
// Duration the total elapsed time for terminal outcomes; From and To
// describe circuit transitions.
type Event struct {
	Type        Type
	Service     string
	OperationID string
	Attempt     int
	Delay       time.Duration
	Duration    time.Duration
	Err         error
	From        string
	To          string
	At          time.Time
}

// Sink receives lifecycle events. Emit is called synchronously on the
// operation's goroutine; implementations must be safe for concurrent use
// and should not block.
type Sink interface {
	Emit(e Event)
}

// NopSink discards all events
type NopSink struct{}

// Emit implements Sink
func (NopSink) Emit(Event) {}

// MultiSink fans events out to multiple sinks in registration order
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink. Nil entries are skipped.
func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

// Emit implements Sink
func (m *MultiSink) Emit(e Event) {
	for _, s := range m.sinks {
		s.Emit(e)
	}
}
