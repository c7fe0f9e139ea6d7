package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// Memory is an in-process Store. Entries do not survive a restart.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]byte)}
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, fingerprint string) ([]byte, bool, error) {
	m.mu.RLock()
	data, ok := m.entries[fingerprint]
	m.mu.RUnlock()
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return append([]byte(nil), data...), true, nil
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, fingerprint string, response []byte) error {
	m.mu.Lock()
	m.entries[fingerprint] = append([]byte(nil), response...)
	m.mu.Unlock()
	return nil
}

// Stats implements Store.
func (m *Memory) Stats(context.Context) (models.CacheStats, error) {
	m.mu.RLock()
	n := len(m.entries)
	m.mu.RUnlock()
	return models.CacheStats{
		Entries: int64(n),
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}, nil
}

// Clear implements Store.
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}

// Close implements Store.
func (m *Memory) Close() error { return nil }
