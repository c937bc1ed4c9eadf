package cache

import (
	"context"
	"sync"
	"time"

	"safemap/internal/metrics"
)

// DefaultCapacity bounds the number of distinct keys held in memory.
const DefaultCapacity = 1024

type entry struct {
	value      []byte
	insertedAt time.Time
}

// Memory is a process-local TTL cache. Expiry is lazy: a stale entry is
// dropped when read or swept. When full, the oldest insertion is evicted.
type Memory struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]entry
	now      func() time.Time
}

func NewMemory(ttl time.Duration, capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{ttl: ttl, capacity: capacity, entries: map[string]entry{}, now: time.Now}
}

// WithClock replaces the clock; tests use it to step past the TTL.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		metrics.HeatmapCache.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	if m.now().Sub(e.insertedAt) >= m.ttl {
		delete(m.entries, key)
		metrics.HeatmapCache.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	metrics.HeatmapCache.WithLabelValues("memory", "hit").Inc()
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.sweepLocked()
		if len(m.entries) >= m.capacity {
			m.evictOldestLocked()
		}
	}
	m.entries[key] = entry{value: value, insertedAt: m.now()}
}

// Sweep drops every expired entry and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked()
}

// Len is the number of entries held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) sweepLocked() int {
	n := 0
	now := m.now()
	for k, e := range m.entries {
		if now.Sub(e.insertedAt) >= m.ttl {
			delete(m.entries, k)
			n++
		}
	}
	return n
}

func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range m.entries {
		if first || e.insertedAt.Before(oldest) {
			oldestKey, oldest, first = k, e.insertedAt, false
		}
	}
	if !first {
		delete(m.entries, oldestKey)
	}
}
