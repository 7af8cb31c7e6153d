package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.data[key.String()]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	// Return a copy to prevent mutation.
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.mu.Lock()
	m.data[key.String()] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	delete(m.data, key.String())
	m.mu.Unlock()
	return nil
}

func (m *Memory) Keys(_ context.Context, prefix Key) ([]Key, error) {
	p := prefixString(prefix)

	m.mu.RLock()
	var matches []string
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			matches = append(matches, k)
		}
	}
	m.mu.RUnlock()

	sort.Strings(matches)
	keys := make([]Key, len(matches))
	for i, k := range matches {
		keys[i] = decodeKey(k)
	}
	return keys, nil
}

func (m *Memory) Close() error {
	return nil
}
