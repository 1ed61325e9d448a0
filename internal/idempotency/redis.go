package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores processed-message markers in Redis.
type RedisLedger struct {
	client redis.UniversalClient
}

// NewRedisLedger creates a ledger backed by the given Redis client.
func NewRedisLedger(client redis.UniversalClient) *RedisLedger {
	return &RedisLedger{client: client}
}

// MarkProcessed implements Ledger.
func (l *RedisLedger) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	if err := l.client.Set(ctx, Key(messageID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("idempotency: mark %s: %w", messageID, err)
	}
	return nil
}

// IsProcessed implements Ledger.
func (l *RedisLedger) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	n, err := l.client.Exists(ctx, Key(messageID)).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: check %s: %w", messageID, err)
	}
	return n > 0, nil
}

// Forget implements Ledger.
func (l *RedisLedger) Forget(ctx context.Context, messageID string) error {
	if err := l.client.Del(ctx, Key(messageID)).Err(); err != nil {
		return fmt.Errorf("idempotency: forget %s: %w", messageID, err)
	}
	return nil
}
