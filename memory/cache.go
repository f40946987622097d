package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Cache is a read-through, write-back view of a Store. It indexes every key
// up front and loads values on first use. Writes stay in memory until
// Flush. All methods are safe for concurrent use.
type Cache struct {
	store   Store
	values  map[string][]byte
	index   map[string]bool
	dirty   map[string]bool
	removed map[string]bool
	mu      sync.RWMutex
}

// NewCache creates a Cache backed by store.
func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		values:  make(map[string][]byte),
		index:   make(map[string]bool),
		dirty:   make(map[string]bool),
		removed: make(map[string]bool),
	}
}

// Bootstrap indexes the store and eagerly loads keys under any of prefixes.
func (c *Cache) Bootstrap(ctx context.Context, prefixes ...string) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}

	c.mu.Lock()
	for _, key := range keys {
		c.index[key] = true
	}
	c.mu.Unlock()

	var eager []string
	for _, key := range keys {
		if hasAnyPrefix(key, prefixes) {
			eager = append(eager, key)
		}
	}
	if len(eager) == 0 {
		return nil
	}

	entries, err := c.store.Load(ctx, eager...)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}

	c.mu.Lock()
	for _, e := range entries {
		c.values[e.Key] = e.Value
	}
	c.mu.Unlock()
	return nil
}

// Fetch returns the value of key, loading it from the store on a miss.
func (c *Cache) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	c.mu.RLock()
	value, cached := c.values[key]
	removed := c.removed[key]
	c.mu.RUnlock()

	if cached {
		return slices.Clone(value), nil
	}
	if removed {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	entries, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A Set or Delete may have landed while the store was read.
	if current, ok := c.values[key]; ok {
		return slices.Clone(current), nil
	}
	if c.removed[key] {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	c.values[key] = entries[0].Value
	c.index[key] = true
	return slices.Clone(entries[0].Value), nil
}

// Set stores value under key and marks it for the next Flush.
func (c *Cache) Set(key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = slices.Clone(value)
	c.index[key] = true
	c.dirty[key] = true
	delete(c.removed, key)
	return nil
}

// Delete removes key and reports whether it was known.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	known := c.index[key]
	delete(c.values, key)
	delete(c.index, key)
	delete(c.dirty, key)
	c.removed[key] = true
	return known
}

// Flush writes dirty values and removals back to the store.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	var toSave []Entry
	for key := range c.dirty {
		toSave = append(toSave, Entry{Key: key, Value: c.values[key]})
	}
	var toDelete []string
	for key := range c.removed {
		toDelete = append(toDelete, key)
	}
	c.mu.RUnlock()

	if len(toSave) > 0 {
		if err := c.store.Save(ctx, toSave...); err != nil {
			return fmt.Errorf("flush save: %w", err)
		}
	}
	if len(toDelete) > 0 {
		if err := c.store.Delete(ctx, toDelete...); err != nil {
			return fmt.Errorf("flush delete: %w", err)
		}
	}

	c.mu.Lock()
	for _, e := range toSave {
		delete(c.dirty, e.Key)
	}
	for _, key := range toDelete {
		delete(c.removed, key)
	}
	c.mu.Unlock()
	return nil
}

// Has reports whether key is indexed.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index[key]
}

// Keys returns the indexed keys under prefix in sorted order.
func (c *Cache) Keys(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.index))
	for key := range c.index {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Pending returns the number of unflushed writes and removals.
func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirty) + len(c.removed)
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
