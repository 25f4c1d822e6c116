package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared Redis instance. Expiry is delegated to
// Redis TTLs; entry-count bounding and memory pressure are Redis's concern
// (maxmemory policy). Any Redis failure degrades to a cache miss.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
}

const redisKeyPrefix = "response_cache:"

// NewRedis connects to the Redis server and verifies the connection.
func NewRedis(addr, password string, db int, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Redis{rdb: rdb, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (Entry, bool) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[CACHE] redis get failed, treating as miss: %v", err)
		}
		r.misses.Add(1)
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		log.Printf("[CACHE] corrupt redis entry, treating as miss: %v", err)
		r.misses.Add(1)
		return Entry{}, false
	}

	// Guard against clock drift between writers: the absolute TTL from
	// CreatedAt wins over whatever expiry Redis still holds.
	if time.Since(entry.CreatedAt) >= r.ttl {
		r.misses.Add(1)
		return Entry{}, false
	}

	r.hits.Add(1)
	return entry, true
}

func (r *Redis) Put(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.rdb.Set(ctx, redisKeyPrefix+entry.Key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats reports local hit/miss counters. Entry counts, ages, memory and
// evictions live server-side under Redis TTL and maxmemory policy; reporting
// them would take a prefix scan of the shared keyspace per stats call, so
// deployments read them from Redis INFO instead.
func (r *Redis) Stats() Stats {
	hits := r.hits.Load()
	misses := r.misses.Load()
	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:            hits,
		Misses:          misses,
		HitRate:         hitRate,
		AgeDistribution: newAgeDistribution(),
	}
}
