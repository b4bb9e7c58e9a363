// ABOUTME: In-memory Engine implementation for testing
// ABOUTME: Allows tests of the layers above the store to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryEngine is an in-memory Engine implementation for testing. Values are
// copied on the way in and out so callers cannot alias stored bytes.
type MemoryEngine struct {
	mu   sync.RWMutex
	data map[Namespace]map[string][]byte
}

// NewMemoryEngine creates an empty MemoryEngine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{
		data: map[Namespace]map[string][]byte{
			NamespaceUsers:  {},
			NamespacePublic: {},
		},
	}
}

// Get returns the stored bytes for key, or ErrNotFound.
func (m *MemoryEngine) Get(_ context.Context, ns Namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[ns][key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Insert overwrites the value for key and returns the previous bytes.
func (m *MemoryEngine) Insert(_ context.Context, ns Namespace, key string, data []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var prev []byte
	if old, ok := m.data[ns][key]; ok {
		prev = make([]byte, len(old))
		copy(prev, old)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[ns][key] = stored
	return prev, nil
}

// Keys lists all keys in the namespace in lexical order.
func (m *MemoryEngine) Keys(_ context.Context, ns Namespace) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data[ns]))
	for k := range m.data[ns] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op for the in-memory engine.
func (m *MemoryEngine) Close() error { return nil }

// Ensure MemoryEngine implements Engine.
var _ Engine = (*MemoryEngine)(nil)
