package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process Store: an LRU bounded by entry count, with absolute
// TTL measured from each entry's CreatedAt. Reads do not advance any timer.
type Memory struct {
	mu        sync.Mutex
	entries   *lru.Cache[string, Entry]
	ttl       time.Duration
	hits      int64
	misses    int64
	evictions int64
	now       func() time.Time
}

// NewMemory creates a memory cache holding at most maxEntries entries, each
// valid for ttl from creation.
func NewMemory(maxEntries int, ttl time.Duration) (*Memory, error) {
	m := &Memory{ttl: ttl, now: time.Now}
	entries, err := lru.NewWithEvict[string, Entry](maxEntries, func(string, Entry) {
		// Callback runs under m.mu: Add and Remove are only called with it held.
		m.evictions++
	})
	if err != nil {
		return nil, err
	}
	m.entries = entries
	return m, nil
}

// Get returns a copy of the cached entry, or false if it is missing or its TTL
// has elapsed. Expired entries are purged here rather than by a sweeper.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries.Get(key)
	if !ok {
		m.misses++
		return Entry{}, false
	}

	if m.now().Sub(entry.CreatedAt) >= m.ttl {
		m.entries.Remove(key)
		m.evictions-- // expiry purge, not a size eviction
		m.misses++
		return Entry{}, false
	}

	m.hits++
	return entry, true
}

// Put stores an entry. When the store is full the least recently used entry is
// dropped to stay under the bound. Never fails.
func (m *Memory) Put(_ context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	m.mu.Lock()
	m.entries.Add(entry.Key, entry)
	m.mu.Unlock()
	return nil
}

// Stats returns hit/miss/eviction accounting, the age distribution of live
// entries, and a payload-size memory estimate.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	ages := newAgeDistribution()
	var memory int64
	now := m.now()
	for _, key := range m.entries.Keys() {
		entry, ok := m.entries.Peek(key)
		if !ok {
			continue
		}
		ages[ageBucket(now.Sub(entry.CreatedAt))]++
		memory += int64(len(entry.Response) + len(entry.Key) + len(entry.Model) + len(entry.UserRole) + 64)
	}

	total := m.hits + m.misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(m.hits) / float64(total)
	}

	return Stats{
		Entries:         m.entries.Len(),
		Hits:            m.hits,
		Misses:          m.misses,
		Evictions:       m.evictions,
		HitRate:         hitRate,
		AgeDistribution: ages,
		MemoryBytes:     memory,
	}
}
