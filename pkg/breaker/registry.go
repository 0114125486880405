package breaker

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coder/quartz"

	"github.com/jzx17/goresilience/pkg/events"
	"github.com/jzx17/goresilience/pkg/types"
)

// Registry owns the named circuit breakers of a process. Breakers are
// created explicitly through Register and persist for the lifetime of the
// registry; there is no registration on first use.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker

	clock quartz.Clock
	sink  events.Sink
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithRegistryClock sets the time source handed to every registered
// breaker, for tests
func WithRegistryClock(clock quartz.Clock) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithRegistrySink sets the sink handed to every registered breaker
func WithRegistrySink(sink events.Sink) RegistryOption {
	return func(r *Registry) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers: make(map[string]*Breaker),
		clock:    quartz.NewReal(),
		sink:     events.NopSink{},
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a breaker for service in the closed state. Registering
// a service twice returns types.ErrServiceAlreadyRegistered and leaves
// the existing breaker, including its accumulated state, untouched.
func (r *Registry) Register(service string, config Config) (*Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.breakers[service]; exists {
		return nil, fmt.Errorf("service %s: %w", service, types.ErrServiceAlreadyRegistered)
	}

	b := New(service, config, WithClock(r.clock), WithSink(r.sink))
	r.breakers[service] = b
	return b, nil
}

// Get returns the breaker for service
func (r *Registry) Get(service string) (*Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.breakers[service]
	return b, ok
}

// Reset forces the breaker for service back to closed. It returns
// types.ErrServiceNotRegistered for unknown services.
func (r *Registry) Reset(service string) error {
	b, ok := r.Get(service)
	if !ok {
		return fmt.Errorf("service %s: %w", service, types.ErrServiceNotRegistered)
	}
	b.Reset()
	return nil
}

// Services returns the registered service names in sorted order
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshots returns a point-in-time view of every registered breaker,
// sorted by service name
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(breakers))
	for _, b := range breakers {
		snapshots = append(snapshots, b.Snapshot())
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Service < snapshots[j].Service
	})
	return snapshots
}
