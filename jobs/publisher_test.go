package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
)

func TestPublisherFallbackMatrix(t *testing.T) {
	// Broker pool unset throughout: every email send exercises a fallback.

	t.Run("sync delivers in the caller's stack", func(t *testing.T) {
		sender := &scriptedSender{}
		publisher := NewPublisher(nil, WithEmailSender(sender))

		err := publisher.EnqueueEmail(context.Background(), "welcome", map[string]any{"name": "ada"}, FallbackSync)

		require.NoError(t, err)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "welcome", sender.sent[0].Template)
	})

	t.Run("none delivers nothing", func(t *testing.T) {
		sender := &scriptedSender{}
		publisher := NewPublisher(nil, WithEmailSender(sender))

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, FallbackNone)

		require.NoError(t, err)
		assert.Zero(t, sender.calls)
	})

	t.Run("raise surfaces a delivery error", func(t *testing.T) {
		sender := &scriptedSender{}
		publisher := NewPublisher(nil, WithEmailSender(sender))

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, FallbackRaise)

		assert.ErrorIs(t, err, contracts.ErrBrokerUnavailable)
		assert.Zero(t, sender.calls)
	})

	t.Run("invalid strategy is an argument error before any delivery", func(t *testing.T) {
		sender := &scriptedSender{}
		publisher := NewPublisher(nil, WithEmailSender(sender))

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, FallbackStrategy("catapult"))

		assert.ErrorIs(t, err, contracts.ErrInvalidFallback)
		assert.Zero(t, sender.calls)
	})

	t.Run("async thread delivers without blocking the caller", func(t *testing.T) {
		delivered := make(chan contracts.Email, 1)
		publisher := NewPublisher(nil, WithEmailSender(chanSender{ch: delivered}))

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, FallbackAsyncThread)
		require.NoError(t, err)

		select {
		case email := <-delivered:
			assert.Equal(t, "welcome", email.Template)
		case <-time.After(time.Second):
			t.Fatal("async fallback never delivered")
		}
	})

	t.Run("empty strategy applies the default", func(t *testing.T) {
		delivered := make(chan contracts.Email, 1)
		publisher := NewPublisher(nil, WithEmailSender(chanSender{ch: delivered}))

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, "")
		require.NoError(t, err)

		select {
		case <-delivered:
		case <-time.After(time.Second):
			t.Fatal("default fallback never delivered")
		}
	})

	t.Run("sync with no sender configured errors", func(t *testing.T) {
		publisher := NewPublisher(nil)

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, FallbackSync)

		assert.ErrorIs(t, err, contracts.ErrBrokerUnavailable)
	})

	t.Run("raw email follows the same contract", func(t *testing.T) {
		sender := &scriptedSender{}
		publisher := NewPublisher(nil, WithEmailSender(sender))
		email := contracts.Email{To: "a@b.c", Subject: "hi", Body: "text"}

		require.NoError(t, publisher.EnqueueEmailRaw(context.Background(), email, FallbackSync))
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "a@b.c", sender.sent[0].To)

		err := publisher.EnqueueEmailRaw(context.Background(), email, FallbackStrategy("nope"))
		assert.ErrorIs(t, err, contracts.ErrInvalidFallback)
	})

	t.Run("sync delivery error propagates", func(t *testing.T) {
		sender := &scriptedSender{errs: []error{errors.New("smtp refused")}}
		publisher := NewPublisher(nil, WithEmailSender(sender))

		err := publisher.EnqueueEmail(context.Background(), "welcome", nil, FallbackSync)

		assert.Error(t, err)
	})
}

type chanSender struct {
	ch chan contracts.Email
}

func (s chanSender) Send(ctx context.Context, email contracts.Email) error {
	s.ch <- email
	return nil
}

func TestPublishWithoutBroker(t *testing.T) {
	publisher := NewPublisher(nil)

	id, err := publisher.Publish(context.Background(), "billing.event.process", map[string]any{"x": 1})

	assert.ErrorIs(t, err, contracts.ErrBrokerUnavailable)
	assert.Empty(t, id)
}

func TestEnqueueTransient(t *testing.T) {
	t.Run("blank event types are refused without publishing", func(t *testing.T) {
		publisher := NewPublisher(nil)

		assert.False(t, publisher.EnqueueTransient(context.Background(), "", map[string]any{"k": "v"}))
		assert.False(t, publisher.EnqueueTransient(context.Background(), "   ", map[string]any{"k": "v"}))
	})

	t.Run("absent broker pool returns false, never an error", func(t *testing.T) {
		publisher := NewPublisher(nil)

		assert.False(t, publisher.EnqueueTransient(context.Background(), "domain_verified", map[string]any{"k": "v"}))
	})
}

func TestTransientEventCoercion(t *testing.T) {
	t.Run("non-map data is coerced to an empty map", func(t *testing.T) {
		event, ok := transientEvent("domain_verified", "not a map")

		require.True(t, ok)
		assert.Equal(t, "domain_verified", event.EventType)
		assert.NotNil(t, event.Data)
		assert.Empty(t, event.Data)
	})

	t.Run("nil data is coerced to an empty map", func(t *testing.T) {
		event, ok := transientEvent("secret_created", nil)

		require.True(t, ok)
		assert.NotNil(t, event.Data)
		assert.Empty(t, event.Data)
	})

	t.Run("map data passes through", func(t *testing.T) {
		event, ok := transientEvent("secret_created", map[string]any{"size": 42})

		require.True(t, ok)
		assert.Equal(t, map[string]any{"size": 42}, event.Data)
	})

	t.Run("timestamp is ISO-8601", func(t *testing.T) {
		event, ok := transientEvent("secret_created", nil)

		require.True(t, ok)
		_, err := time.Parse(time.RFC3339, event.Timestamp)
		assert.NoError(t, err)
	})

	t.Run("blank event type is refused", func(t *testing.T) {
		_, ok := transientEvent("\t\n ", map[string]any{})
		assert.False(t, ok)
	})
}
