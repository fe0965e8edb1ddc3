// Package inmemory provides a map-backed prefs.Backend for tests and
// ephemeral sessions.
package inmemory

import (
	"context"
	"sort"
	"sync"
)

// Backend implements prefs.Backend using an in-memory map.
type Backend struct {
	mu    sync.RWMutex
	items map[string]string
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{
		items: make(map[string]string),
	}
}

// GetItem returns the value stored under key.
func (b *Backend) GetItem(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.items[key]
	return v, ok, nil
}

// SetItem stores value under key.
func (b *Backend) SetItem(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[key] = value
	return nil
}

// RemoveItem deletes key.
func (b *Backend) RemoveItem(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.items, key)
	return nil
}

// Keys returns every key in sorted order.
func (b *Backend) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.items))
	for k := range b.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}
