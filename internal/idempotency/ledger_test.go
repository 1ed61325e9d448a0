package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "job:processed:evt_123", Key("evt_123"))
}

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()

	t.Run("unmarked ids are not processed", func(t *testing.T) {
		ledger := NewMemoryLedger()

		processed, err := ledger.IsProcessed(ctx, "msg-1")

		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("marked ids are processed until TTL expiry", func(t *testing.T) {
		ledger := NewMemoryLedger()
		require.NoError(t, ledger.MarkProcessed(ctx, "msg-2", time.Hour))

		processed, err := ledger.IsProcessed(ctx, "msg-2")

		require.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("expired entries read as unprocessed", func(t *testing.T) {
		ledger := NewMemoryLedger()
		require.NoError(t, ledger.MarkProcessed(ctx, "msg-3", -time.Second))

		processed, err := ledger.IsProcessed(ctx, "msg-3")

		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("forget removes the marker", func(t *testing.T) {
		ledger := NewMemoryLedger()
		require.NoError(t, ledger.MarkProcessed(ctx, "msg-4", time.Hour))
		require.NoError(t, ledger.Forget(ctx, "msg-4"))

		processed, err := ledger.IsProcessed(ctx, "msg-4")

		require.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("TTL reports remaining lifetime within the configured bound", func(t *testing.T) {
		ledger := NewMemoryLedger()
		require.NoError(t, ledger.MarkProcessed(ctx, "msg-5", time.Hour))

		remaining, ok := ledger.TTL("msg-5")

		require.True(t, ok)
		assert.Greater(t, remaining, time.Duration(0))
		assert.LessOrEqual(t, remaining, time.Hour)
	})

	t.Run("TTL reports false for absent markers", func(t *testing.T) {
		ledger := NewMemoryLedger()

		_, ok := ledger.TTL("missing")

		assert.False(t, ok)
	})
}
