package contracts

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// SchemaVersionHeader is the header key carrying the payload schema version.
const SchemaVersionHeader = "x-schema-version"

// DefaultSchemaVersion is assumed when headers are absent or carry no version.
const DefaultSchemaVersion = 1

// Envelope carries per-delivery metadata attached by the broker client.
// It is constructed once per delivery and treated as read-only.
type Envelope struct {
	DeliveryTag uint64
	RoutingKey  string
	Redelivered bool
	MessageID   string // empty when the publisher supplied no message id
	Headers     amqp.Table
}

// NewEnvelope builds an Envelope from a raw AMQP delivery.
func NewEnvelope(d amqp.Delivery) *Envelope {
	return &Envelope{
		DeliveryTag: d.DeliveryTag,
		RoutingKey:  d.RoutingKey,
		Redelivered: d.Redelivered,
		MessageID:   d.MessageId,
		Headers:     d.Headers,
	}
}

// SchemaVersion returns the schema version declared in the delivery headers,
// or DefaultSchemaVersion when headers are nil, the key is missing, or the
// value is not one of the integer types the AMQP client decodes.
func (e *Envelope) SchemaVersion() int {
	if e.Headers == nil {
		return DefaultSchemaVersion
	}
	v, ok := e.Headers[SchemaVersionHeader]
	if !ok {
		return DefaultSchemaVersion
	}
	switch n := v.(type) {
	case int:
		return n
	case int8:
		return int(n)
	case int16:
		return int(n)
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return DefaultSchemaVersion
	}
}
