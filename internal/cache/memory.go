// Package cache holds the range cache backends behind schedule.CachedStore.
package cache

import (
	"context"
	"sync"
	"time"

	"meal-scheduler/internal/schedule"

	"cloud.google.com/go/civil"
)

type memoryEntry struct {
	schedules []schedule.Schedule
	expiresAt time.Time
}

// Memory is a process-local range cache.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	gen     int64
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates a Memory cache. A ttl of zero keeps entries until the
// next invalidation.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, start, end civil.Date) ([]schedule.Schedule, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rangeKey(start, end)
	entry, ok := m.entries[key]
	if !ok {
		return nil, m.gen, false, nil
	}
	if m.ttl > 0 && m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, m.gen, false, nil
	}
	return append([]schedule.Schedule(nil), entry.schedules...), m.gen, true, nil
}

func (m *Memory) Set(_ context.Context, gen int64, start, end civil.Date, schedules []schedule.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return nil
	}
	m.entries[rangeKey(start, end)] = memoryEntry{
		schedules: append([]schedule.Schedule(nil), schedules...),
		expiresAt: m.now().Add(m.ttl),
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	clear(m.entries)
	return nil
}

func rangeKey(start, end civil.Date) string {
	return start.String() + ":" + end.String()
}
