package localstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStorage keeps values in process memory with an optional byte quota,
// the way a browser bounds localStorage.
type MemoryStorage struct {
	mu    sync.RWMutex
	data  map[string]string
	used  int
	quota int
}

// NewMemoryStorage creates a memory store; quota <= 0 means unlimited
func NewMemoryStorage(quota int) *MemoryStorage {
	return &MemoryStorage{
		data:  make(map[string]string),
		quota: quota,
	}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	used := m.used + len(key) + len(value)
	if old, ok := m.data[key]; ok {
		used -= len(key) + len(old)
	}
	if m.quota > 0 && used > m.quota {
		return ErrQuotaExceeded
	}

	m.data[key] = value
	m.used = used
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[key]; ok {
		m.used -= len(key) + len(old)
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryStorage) Keys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0)
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the number of bytes currently stored
func (m *MemoryStorage) Used() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.used
}
