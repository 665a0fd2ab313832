package storage

import (
	"sort"
	"sync"
)

// MemoryStore is an in-process Store with an optional byte quota.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
	used  int64
	quota int64
}

// NewMemoryStore creates a store bounded to quota bytes (UTF-16 accounting). 0 means unbounded.
func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{items: make(map[string]string), quota: quota}
}

func (m *MemoryStore) GetItem(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryStore) SetItem(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.used + Sizeof(key) + Sizeof(value)
	if old, ok := m.items[key]; ok {
		next -= Sizeof(key) + Sizeof(old)
	}
	if m.quota > 0 && next > m.quota {
		return ErrQuotaExceeded
	}
	m.items[key] = value
	m.used = next
	return nil
}

func (m *MemoryStore) RemoveItem(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.items[key]; ok {
		m.used -= Sizeof(key) + Sizeof(old)
		delete(m.items, key)
	}
	return nil
}

func (m *MemoryStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used reports the bytes currently accounted against the quota.
func (m *MemoryStore) Used() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}

func (m *MemoryStore) Close() error { return nil }
