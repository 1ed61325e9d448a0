package contracts

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestNewEnvelope(t *testing.T) {
	delivery := amqp.Delivery{
		DeliveryTag: 7,
		RoutingKey:  "billing.event.process",
		Redelivered: true,
		MessageId:   "msg-1",
		Headers:     amqp.Table{SchemaVersionHeader: int32(2)},
	}

	env := NewEnvelope(delivery)

	assert.Equal(t, uint64(7), env.DeliveryTag)
	assert.Equal(t, "billing.event.process", env.RoutingKey)
	assert.True(t, env.Redelivered)
	assert.Equal(t, "msg-1", env.MessageID)
	assert.Equal(t, 2, env.SchemaVersion())
}

func TestEnvelopeSchemaVersion(t *testing.T) {
	t.Run("nil headers default to version 1", func(t *testing.T) {
		env := &Envelope{}
		assert.Equal(t, DefaultSchemaVersion, env.SchemaVersion())
	})

	t.Run("missing key defaults to version 1", func(t *testing.T) {
		env := &Envelope{Headers: amqp.Table{"other": "value"}}
		assert.Equal(t, DefaultSchemaVersion, env.SchemaVersion())
	})

	t.Run("integer header types are accepted", func(t *testing.T) {
		for _, value := range []interface{}{int(3), int8(3), int16(3), int32(3), int64(3), float64(3)} {
			env := &Envelope{Headers: amqp.Table{SchemaVersionHeader: value}}
			assert.Equal(t, 3, env.SchemaVersion())
		}
	})

	t.Run("non-numeric header defaults to version 1", func(t *testing.T) {
		env := &Envelope{Headers: amqp.Table{SchemaVersionHeader: "two"}}
		assert.Equal(t, DefaultSchemaVersion, env.SchemaVersion())
	})
}
