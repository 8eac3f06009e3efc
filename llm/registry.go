package llm

import (
	"fmt"
	"sort"
	"sync"
)

// BackendRegistry is a thread-safe registry for named backends with an optional default.
type BackendRegistry struct {
	backends       map[string]Backend
	defaultBackend string
	mu             sync.RWMutex
}

// NewBackendRegistry creates an empty BackendRegistry.
func NewBackendRegistry() *BackendRegistry {
	return &BackendRegistry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend under the given name, replacing any previous entry.
// The first registered backend becomes the default.
func (r *BackendRegistry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
	if r.defaultBackend == "" {
		r.defaultBackend = name
	}
}

// Get retrieves a backend by name.
func (r *BackendRegistry) Get(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Default returns the default backend.
func (r *BackendRegistry) Default() (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultBackend == "" {
		return nil, fmt.Errorf("no default backend set")
	}
	b, ok := r.backends[r.defaultBackend]
	if !ok {
		return nil, fmt.Errorf("default backend %q not found in registry", r.defaultBackend)
	}
	return b, nil
}

// SetDefault designates an existing registered backend as the default.
func (r *BackendRegistry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.backends[name]; !ok {
		return fmt.Errorf("backend %q not registered", name)
	}
	r.defaultBackend = name
	return nil
}

// List returns the sorted names of all registered backends.
func (r *BackendRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a backend; removing the default clears it.
func (r *BackendRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
	if r.defaultBackend == name {
		r.defaultBackend = ""
	}
}

// Len returns the number of registered backends.
func (r *BackendRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}
