package cache

import (
	"context"
	"sync"
	"time"

	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/clock"
	"github.com/RyanJHamby/stock-screener-cagr-based/pkg/monitoring"
)

type memoryEntry struct {
	payload  []byte
	storedAt time.Time
}

// MemoryStore is a process-local cache used for one-off runs and tests
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttls    TTLs
	clock   clock.Clock
	metrics *monitoring.Registry
}

// NewMemory creates an empty in-memory store
func NewMemory(ttls TTLs, clk clock.Clock, metrics *monitoring.Registry) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttls:    ttls,
		clock:   clk,
		metrics: metrics,
	}
}

func (m *MemoryStore) Get(_ context.Context, key, category string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || !usable(e.payload) || !m.ttls.Fresh(category, e.storedAt, m.clock.Now()) {
		m.metrics.CacheMiss(category)
		return nil, false
	}

	m.metrics.CacheHit(category)
	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true
}

func (m *MemoryStore) Put(_ context.Context, key, category string, payload []byte) error {
	if err := m.ttls.Validate(category); err != nil {
		return err
	}

	stored := make([]byte, len(payload))
	copy(stored, payload)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{payload: stored, storedAt: m.clock.Now()}
	return nil
}

// Len returns the number of stored entries
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
