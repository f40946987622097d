// Package memory stores the named text resources scripts can include.
// Resources live in a flat /-separated key space backed by a pluggable
// Store, with a Cache in front that the resource root reads through.
package memory

import (
	"context"

	"github.com/tailored-agentic-units/roots/config"
)

// Store translates between external storage and the resource key space.
// Implementations do not cache.
type Store interface {
	// List returns all available keys in sorted order.
	List(ctx context.Context) ([]string, error)
	// Load retrieves entries for the specified keys. A missing key fails
	// the whole call with ErrKeyNotFound.
	Load(ctx context.Context, keys ...string) ([]Entry, error)
	// Save persists entries, creating or overwriting as needed.
	Save(ctx context.Context, entries ...Entry) error
	// Delete removes entries. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// NewStore creates the Store described by cfg: a FileStore rooted at
// cfg.Path, or an in-memory store when Path is empty.
func NewStore(cfg config.ResourceConfig) Store {
	if cfg.Path == "" {
		return NewMemoryStore()
	}
	return NewFileStore(cfg.Path)
}
