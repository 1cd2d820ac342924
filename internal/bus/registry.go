package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	ErrBackendNotFound      = errors.New("bus backend not found")
	ErrBackendAlreadyExists = errors.New("bus backend already registered")
)

// Factory opens a connection to one backend
type Factory func(logger *slog.Logger) (Bus, error)

// Registry maps backend names to their factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new backend registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a backend to the registry
func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrBackendAlreadyExists, name)
	}

	r.factories[name] = factory
	return nil
}

// Open connects to the named backend
func (r *Registry) Open(name string, logger *slog.Logger) (Bus, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrBackendNotFound, name, strings.Join(r.List(), ", "))
	}

	return factory(logger)
}

// List returns all registered backend names, sorted
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
