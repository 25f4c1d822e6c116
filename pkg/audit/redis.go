package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSink stores audit events in Redis with time-series indexes so
// events can be listed globally, per user, or per threat type. Entries
// age out after the retention window.
type RedisSink struct {
	rdb       *redis.Client
	retention time.Duration
}

// NewRedisSink creates a Redis-backed audit sink. retentionDays <= 0
// defaults to 30 days.
func NewRedisSink(rdb *redis.Client, retentionDays int) *RedisSink {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &RedisSink{
		rdb:       rdb,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Record persists the event. Failures are logged and swallowed; auditing
// must never fail a request.
func (s *RedisSink) Record(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[AUDIT] marshal failed: %v", err)
		return
	}

	key := fmt.Sprintf("audit:event:%s", event.ID)
	if err := s.rdb.Set(ctx, key, data, s.retention).Err(); err != nil {
		log.Printf("[AUDIT] redis write failed: %v", err)
		return
	}

	timestamp := float64(event.Timestamp.Unix())
	cutoff := fmt.Sprintf("%f", float64(time.Now().Add(-s.retention).Unix()))
	member := redis.Z{Score: timestamp, Member: event.ID}

	for _, index := range s.indexKeys(event) {
		s.rdb.ZAdd(ctx, index, member)
		s.rdb.ZRemRangeByScore(ctx, index, "-inf", cutoff)
		s.rdb.Expire(ctx, index, s.retention)
	}
}

func (s *RedisSink) indexKeys(event Event) []string {
	keys := []string{"audit:timeline"}
	if event.UserID != "" {
		keys = append(keys, fmt.Sprintf("audit:user:%s", event.UserID))
	}
	if event.ThreatType != "" {
		keys = append(keys, fmt.Sprintf("audit:threat:%s", event.ThreatType))
	}
	return keys
}

// Filters narrow a List query. Zero values are ignored.
type Filters struct {
	UserID     string
	ThreatType string
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}

// List returns events newest first, using the narrowest available index.
func (s *RedisSink) List(ctx context.Context, filters Filters) ([]*Event, error) {
	indexKey := "audit:timeline"
	if filters.UserID != "" {
		indexKey = fmt.Sprintf("audit:user:%s", filters.UserID)
	} else if filters.ThreatType != "" {
		indexKey = fmt.Sprintf("audit:threat:%s", filters.ThreatType)
	}

	maxScore := float64(time.Now().Unix())
	if !filters.To.IsZero() {
		maxScore = float64(filters.To.Unix())
	}
	limit := filters.Limit
	if limit == 0 {
		limit = 100
	}

	ids, err := s.rdb.ZRevRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min:    fmt.Sprintf("%f", float64(filters.From.Unix())),
		Max:    fmt.Sprintf("%f", maxScore),
		Offset: int64(filters.Offset),
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(ids))
	for _, id := range ids {
		data, err := s.rdb.Get(ctx, fmt.Sprintf("audit:event:%s", id)).Bytes()
		if err != nil {
			continue
		}
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}
