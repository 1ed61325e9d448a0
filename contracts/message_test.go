package contracts

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobMessage(t *testing.T) {
	t.Run("parses a billing event", func(t *testing.T) {
		body := []byte(`{"event_id":"evt_1","event_type":"invoice.paid","payload":{"invoice":"in_1"},"received_at":"2026-08-29T10:00:00Z"}`)

		msg, err := ParseJobMessage(body)

		require.NoError(t, err)
		assert.Equal(t, "evt_1", msg.EventID)
		assert.Equal(t, "invoice.paid", msg.EventType)
		assert.True(t, msg.HasPayload())
	})

	t.Run("malformed body is a fatal parse error", func(t *testing.T) {
		_, err := ParseJobMessage([]byte(`{"event_id":`))

		assert.ErrorIs(t, err, ErrMalformedBody)
	})
}

func TestJobMessagePayload(t *testing.T) {
	t.Run("HasPayload is false for empty shapes", func(t *testing.T) {
		for _, raw := range []string{"", "null", `""`, "{}"} {
			msg := &JobMessage{Payload: json.RawMessage(raw)}
			assert.False(t, msg.HasPayload(), "payload %q", raw)
		}
	})

	t.Run("string payloads unquote", func(t *testing.T) {
		msg := &JobMessage{Payload: json.RawMessage(`"raw webhook body"`)}
		assert.Equal(t, "raw webhook body", msg.PayloadString())
	})

	t.Run("object payloads keep their JSON text", func(t *testing.T) {
		msg := &JobMessage{Payload: json.RawMessage(`{"a":1}`)}
		assert.Equal(t, `{"a":1}`, msg.PayloadString())
	})
}

func TestFatalClassification(t *testing.T) {
	t.Run("wrapped fatal errors classify as fatal", func(t *testing.T) {
		err := Fatal(errors.New("bad state"))
		assert.True(t, IsFatal(err))
	})

	t.Run("message-condition sentinels are fatal", func(t *testing.T) {
		for _, err := range []error{ErrMalformedBody, ErrMissingPayload, ErrInvalidPayload, ErrUnsupportedSchema} {
			assert.True(t, IsFatal(err))
		}
	})

	t.Run("ordinary errors are retryable", func(t *testing.T) {
		assert.False(t, IsFatal(errors.New("connection reset")))
		assert.False(t, IsFatal(nil))
	})

	t.Run("Fatal of nil is nil", func(t *testing.T) {
		assert.NoError(t, Fatal(nil))
	})

	t.Run("fatal wrapping preserves the cause", func(t *testing.T) {
		cause := errors.New("bad state")
		assert.ErrorIs(t, Fatal(cause), cause)
	})
}
