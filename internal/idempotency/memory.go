package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger for tests and single-process runs.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry deadline
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[string]time.Time)}
}

// MarkProcessed implements Ledger.
func (l *MemoryLedger) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[Key(messageID)] = time.Now().Add(ttl)
	return nil
}

// IsProcessed implements Ledger.
func (l *MemoryLedger) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	deadline, ok := l.entries[Key(messageID)]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(l.entries, Key(messageID))
		return false, nil
	}
	return true, nil
}

// Forget implements Ledger.
func (l *MemoryLedger) Forget(ctx context.Context, messageID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, Key(messageID))
	return nil
}

// TTL returns the remaining lifetime of a processed marker, or false if the
// marker is absent or expired. Used by tests to verify expiry bounds.
func (l *MemoryLedger) TTL(messageID string) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	deadline, ok := l.entries[Key(messageID)]
	if !ok {
		return 0, false
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}
