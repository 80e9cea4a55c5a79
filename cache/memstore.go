package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultQuotaBytes mirrors the per-origin localStorage budget of common
// browsers.
const DefaultQuotaBytes = 5 << 20

// MemoryStore is an in-process Store with a byte quota counted over keys
// and values. A quota of 0 means unlimited.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
	used  int
	quota int
}

// NewMemoryStore creates an empty store with the given quota in bytes.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{items: make(map[string]string), quota: quota}
}

func (m *MemoryStore) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStore) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + len(key) + len(value)
	if old, ok := m.items[key]; ok {
		next -= len(key) + len(old)
	}
	if m.quota > 0 && next > m.quota {
		return fmt.Errorf("set %q: %w", key, ErrQuotaExceeded)
	}
	m.items[key] = value
	m.used = next
	return nil
}

func (m *MemoryStore) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.items[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.items, key)
	}
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the bytes currently held.
func (m *MemoryStore) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
