// Package testutils provides shared helpers for tests
package testutils

import (
	"errors"
	"sync"

	"github.com/jzx17/goresilience/pkg/events"
	"github.com/jzx17/goresilience/pkg/types"
)

// CaptureSink records every emitted event for later inspection. It is
// safe for concurrent use.
type CaptureSink struct {
	mu     sync.Mutex
	events []events.Event
}

// Emit implements events.Sink
func (s *CaptureSink) Emit(e events.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

// Events returns the captured events in emission order
func (s *CaptureSink) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfType returns the captured events of the given type, in emission order
func (s *CaptureSink) OfType(t events.Type) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []events.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards the captured events
func (s *CaptureSink) Reset() {
	s.mu.Lock()
	s.events = nil
	s.mu.Unlock()
}

// Classified builds a classified error with the given kind and message
func Classified(kind types.FailureKind, msg string) error {
	return types.NewClassifiedError(kind, errors.New(msg))
}

// HTTPError builds a status-bearing classified error
func HTTPError(status int, msg string) error {
	return types.NewHTTPError(status, errors.New(msg))
}
