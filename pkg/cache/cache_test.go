package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyNormalizesWhitespaceAndCase(t *testing.T) {
	a := Key("What causes   headaches?", "gpt-3.5-turbo")
	b := Key("what causes headaches?", "gpt-3.5-turbo")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // sha256 hex
}

func TestKeyDivergesAcrossEligibilityClasses(t *testing.T) {
	patient := Key("what causes headaches?", "gpt-3.5-turbo")
	admin := Key("what causes headaches?", "gpt-3.5-turbo,gpt-4,gpt-4-turbo")
	assert.NotEqual(t, patient, admin)
}

func TestMemoryPutAndGet(t *testing.T) {
	m, err := NewMemory(10, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	entry := Entry{
		Key:        Key("hello", "gpt-3.5-turbo"),
		Response:   "hi there",
		Model:      "gpt-3.5-turbo",
		UserRole:   "patient",
		CostUSD:    0.001,
		TokenCount: 12,
	}
	require.NoError(t, m.Put(ctx, entry))

	got, ok := m.Get(ctx, entry.Key)
	require.True(t, ok)
	assert.Equal(t, "hi there", got.Response)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.False(t, got.CreatedAt.IsZero())

	_, ok = m.Get(ctx, Key("other", "gpt-3.5-turbo"))
	assert.False(t, ok)
}

func TestMemoryExpiresAfterTTL(t *testing.T) {
	m, err := NewMemory(10, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	current := time.Now()
	m.now = func() time.Time { return current }

	require.NoError(t, m.Put(ctx, Entry{Key: "k", Response: "v"}))

	current = current.Add(59 * time.Minute)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok, "entry should survive inside the TTL")

	current = current.Add(2 * time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok, "entry should expire after the TTL")

	// Expired entry is purged, not just hidden.
	assert.Equal(t, 0, m.Stats().Entries)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewMemory(2, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Put(ctx, Entry{Key: "a", Response: "1"}))
	require.NoError(t, m.Put(ctx, Entry{Key: "b", Response: "2"}))
	m.Get(ctx, "a") // refresh a
	require.NoError(t, m.Put(ctx, Entry{Key: "c", Response: "3"}))

	_, ok := m.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok = m.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = m.Get(ctx, "c")
	assert.True(t, ok)

	assert.Equal(t, int64(1), m.Stats().Evictions)
}

func TestMemoryStats(t *testing.T) {
	m, err := NewMemory(10, 48*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	current := time.Now()
	m.now = func() time.Time { return current }

	require.NoError(t, m.Put(ctx, Entry{Key: "fresh", Response: "x"}))
	require.NoError(t, m.Put(ctx, Entry{Key: "old", Response: "y", CreatedAt: current.Add(-3 * time.Hour)}))
	require.NoError(t, m.Put(ctx, Entry{Key: "ancient", Response: "z", CreatedAt: current.Add(-30 * time.Hour)}))

	m.Get(ctx, "fresh")
	m.Get(ctx, "missing")

	stats := m.Stats()
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
	assert.Equal(t, 1, stats.AgeDistribution["<1h"])
	assert.Equal(t, 1, stats.AgeDistribution["1-6h"])
	assert.Equal(t, 1, stats.AgeDistribution[">24h"])
	assert.Greater(t, stats.MemoryBytes, int64(0))
}
