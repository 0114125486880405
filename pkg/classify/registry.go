package classify

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps names to retry conditions so configuration can refer to
// classifiers symbolically ("default", "http") instead of by code.
type Registry struct {
	conditions map[string]Condition
	mu         sync.RWMutex
}

// NewRegistry creates a registry with the built-in conditions registered:
// "default" (kind-based) and "http" (status rules over the default).
func NewRegistry() *Registry {
	registry := &Registry{
		conditions: make(map[string]Condition),
	}

	registry.conditions["default"] = Default
	registry.conditions["http"] = HTTPAware(Default)

	return registry
}

// Register adds a named condition. Registering an existing name is an
// error; built-in names cannot be replaced.
func (r *Registry) Register(name string, cond Condition) error {
	if cond == nil {
		return fmt.Errorf("cannot register nil condition")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conditions[name]; exists {
		return fmt.Errorf("condition with name %s already exists", name)
	}

	r.conditions[name] = cond
	return nil
}

// Get returns the named condition
func (r *Registry) Get(name string) (Condition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cond, ok := r.conditions[name]
	return cond, ok
}

// Names returns the registered condition names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conditions))
	for name := range r.conditions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
