package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/stats"
)

func TestTransientRouter(t *testing.T) {
	at := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)
	msg := func(eventType string) *contracts.JobMessage {
		return &contracts.JobMessage{
			EventType: eventType,
			Data:      map[string]any{},
			Timestamp: at.Format(time.RFC3339),
		}
	}

	t.Run("known events increment their counters", func(t *testing.T) {
		recorder := stats.NewMemoryRecorder()
		router := NewTransientRouter(recorder, nil)

		require.NoError(t, router.Route(context.Background(), msg("secret_created")))
		require.NoError(t, router.Route(context.Background(), msg("secret_created")))
		require.NoError(t, router.Route(context.Background(), msg("domain_verified")))

		assert.Equal(t, int64(2), recorder.Count("secrets.created", at))
		assert.Equal(t, int64(1), recorder.Count("domains.verified", at))
	})

	t.Run("unknown event kinds are a no-op, not an error", func(t *testing.T) {
		recorder := stats.NewMemoryRecorder()
		router := NewTransientRouter(recorder, nil)

		err := router.Route(context.Background(), msg("martian_invasion"))

		assert.NoError(t, err)
		assert.Zero(t, recorder.Count("secrets.created", at))
	})

	t.Run("unparseable timestamp falls back to now", func(t *testing.T) {
		recorder := stats.NewMemoryRecorder()
		router := NewTransientRouter(recorder, nil)
		bad := &contracts.JobMessage{EventType: "secret_viewed", Timestamp: "yesterday-ish"}

		before := time.Now().UTC()
		require.NoError(t, router.Route(context.Background(), bad))
		after := time.Now().UTC()

		counted := recorder.Count("secrets.viewed", before) == 1 || recorder.Count("secrets.viewed", after) == 1
		assert.True(t, counted)
	})

	t.Run("covers every declared event kind", func(t *testing.T) {
		recorder := stats.NewMemoryRecorder()
		router := NewTransientRouter(recorder, nil)

		for _, kind := range []EventKind{
			EventSecretCreated, EventSecretViewed, EventSecretBurned,
			EventDomainVerified, EventSessionOpened,
		} {
			assert.NoError(t, router.Route(context.Background(), msg(string(kind))))
		}
	})
}
