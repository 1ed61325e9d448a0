package idempotency

import (
	"context"
	"time"
)

// KeyPrefix is prepended to every message identifier stored in the ledger.
const KeyPrefix = "job:processed:"

// Ledger records which message identifiers have already produced a completed
// side effect. It is a best-effort optimization, not a guarantee: entries
// expire after their TTL and the check-then-mark sequence is not atomic
// across consumers. Delegates must tolerate the rare double execution.
type Ledger interface {
	// MarkProcessed records that messageID has been handled, with expiry.
	MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) error
	// IsProcessed reports whether messageID has already been handled.
	IsProcessed(ctx context.Context, messageID string) (bool, error)
	// Forget removes the record for messageID, allowing reprocessing.
	Forget(ctx context.Context, messageID string) error
}

// Key returns the ledger key for a message identifier.
func Key(messageID string) string {
	return KeyPrefix + messageID
}
