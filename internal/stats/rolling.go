package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Recorder accumulates best-effort event counters. Implementations may lose
// increments; callers must treat every error as ignorable.
type Recorder interface {
	// Increment bumps the counter for the hour bucket containing at.
	Increment(ctx context.Context, counter string, at time.Time) error
}

const bucketLayout = "2006010215"

// bucketKey builds the redis key for a counter's hour bucket.
func bucketKey(counter string, at time.Time) string {
	return fmt.Sprintf("stats:%s:%s", counter, at.UTC().Format(bucketLayout))
}

// RollingCounters keeps hour-bucketed counters in Redis. Each bucket key is
// refreshed with the retention TTL on every increment, so buckets age out on
// their own.
type RollingCounters struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRollingCounters creates a Redis-backed recorder. retention bounds how
// long a bucket survives after its last increment.
func NewRollingCounters(client redis.UniversalClient, retention time.Duration) *RollingCounters {
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	return &RollingCounters{client: client, retention: retention}
}

// Increment implements Recorder.
func (r *RollingCounters) Increment(ctx context.Context, counter string, at time.Time) error {
	key := bucketKey(counter, at)
	pipe := r.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, r.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("stats: increment %s: %w", key, err)
	}
	return nil
}

// MemoryRecorder counts in process memory. Used by tests and degraded runs.
type MemoryRecorder struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{counts: make(map[string]int64)}
}

// Increment implements Recorder.
func (m *MemoryRecorder) Increment(ctx context.Context, counter string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[bucketKey(counter, at)]++
	return nil
}

// Count returns the accumulated count for a counter's hour bucket.
func (m *MemoryRecorder) Count(counter string, at time.Time) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[bucketKey(counter, at)]
}
