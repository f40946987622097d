package factory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tailored-agentic-units/roots/root"
)

// Constructor creates a new, uninitialized root.
type Constructor func() (root.Root, error)

// Registry maps root type names to constructors.
// It is safe for concurrent use.
type Registry struct {
	entries map[string]Constructor
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Constructor)}
}

// Register adds a constructor under name.
// Returns ErrAlreadyExists if the name is taken; use Replace to swap it.
func (r *Registry) Register(name string, ctor Constructor) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, name)
	}
	r.entries[name] = ctor
	return nil
}

// Replace swaps the constructor of an existing type.
func (r *Registry) Replace(name string, ctor Constructor) error {
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	r.entries[name] = ctor
	return nil
}

// Lookup returns the constructor registered under name.
func (r *Registry) Lookup(name string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctor, exists := r.entries[name]
	return ctor, exists
}

// Create constructs a root of the named type.
func (r *Registry) Create(name string) (root.Root, error) {
	ctor, exists := r.Lookup(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	rt, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", name, err)
	}
	if rt == nil {
		return nil, fmt.Errorf("create %s: constructor returned nil", name)
	}
	return rt, nil
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
