// Package cache provides the response cache for the chat pipeline: a
// key-addressed store of previously generated responses with absolute TTL
// expiry and a bounded entry count.
//
// Caching is a performance optimization, never a correctness dependency.
// Backends must degrade to cache-miss on any internal failure.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Entry is a cached response. Reads return copies, never references into the
// store, so eviction cannot race an in-flight lookup.
type Entry struct {
	Key        string    `json:"key"`
	Response   string    `json:"response"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
	UserRole   string    `json:"user_role"`
	CostUSD    float64   `json:"cost_usd"`
	TokenCount int       `json:"token_count"`
}

// Stats reports cache accounting for analytics and recommendations.
type Stats struct {
	Entries         int            `json:"entries"`
	Hits            int64          `json:"hits"`
	Misses          int64          `json:"misses"`
	Evictions       int64          `json:"evictions"`
	HitRate         float64        `json:"hit_rate"`
	AgeDistribution map[string]int `json:"age_distribution"`
	MemoryBytes     int64          `json:"memory_bytes_estimate"`
}

// Store is the response cache contract. Get returns false for missing or
// TTL-expired entries; expired entries are purged on lookup, not eagerly.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Put(ctx context.Context, entry Entry) error
	Stats() Stats
}

// Key derives the deterministic cache key for a message and a role's
// model-eligibility class. Role eligibility is part of the key, not a separate
// check: two roles share an entry only when their eligibility classes match.
func Key(message, eligibilityClass string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(message)), " ")
	hash := sha256.Sum256([]byte(normalized + "|" + eligibilityClass))
	return hex.EncodeToString(hash[:])
}

// ageBucket maps an entry age onto the reporting buckets.
func ageBucket(age time.Duration) string {
	switch {
	case age < time.Hour:
		return "<1h"
	case age < 6*time.Hour:
		return "1-6h"
	case age < 24*time.Hour:
		return "6-24h"
	default:
		return ">24h"
	}
}

func newAgeDistribution() map[string]int {
	return map[string]int{"<1h": 0, "1-6h": 0, "6-24h": 0, ">24h": 0}
}
