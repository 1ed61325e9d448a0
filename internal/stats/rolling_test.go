package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketKey(t *testing.T) {
	at := time.Date(2026, 8, 29, 14, 45, 12, 0, time.UTC)

	assert.Equal(t, "stats:secrets.created:2026082914", bucketKey("secrets.created", at))

	t.Run("non-UTC times normalize to UTC buckets", func(t *testing.T) {
		offset := at.In(time.FixedZone("plus2", 2*60*60))
		assert.Equal(t, bucketKey("secrets.created", at), bucketKey("secrets.created", offset))
	})
}

func TestMemoryRecorder(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)

	t.Run("increments accumulate per hour bucket", func(t *testing.T) {
		recorder := NewMemoryRecorder()

		require.NoError(t, recorder.Increment(ctx, "secrets.viewed", at))
		require.NoError(t, recorder.Increment(ctx, "secrets.viewed", at.Add(10*time.Minute)))
		require.NoError(t, recorder.Increment(ctx, "secrets.viewed", at.Add(2*time.Hour)))

		assert.Equal(t, int64(2), recorder.Count("secrets.viewed", at))
		assert.Equal(t, int64(1), recorder.Count("secrets.viewed", at.Add(2*time.Hour)))
	})

	t.Run("counters are independent", func(t *testing.T) {
		recorder := NewMemoryRecorder()

		require.NoError(t, recorder.Increment(ctx, "secrets.viewed", at))

		assert.Zero(t, recorder.Count("secrets.created", at))
	})
}

func TestNewRollingCounters(t *testing.T) {
	t.Run("non-positive retention falls back to default", func(t *testing.T) {
		counters := NewRollingCounters(nil, 0)
		assert.Equal(t, 72*time.Hour, counters.retention)
	})

	t.Run("explicit retention is kept", func(t *testing.T) {
		counters := NewRollingCounters(nil, 24*time.Hour)
		assert.Equal(t, 24*time.Hour, counters.retention)
	})
}
