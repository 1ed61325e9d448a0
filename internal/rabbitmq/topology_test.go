package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTopology(t *testing.T) {
	topology := JobTopology()

	queues := make(map[string]QueueDeclaration)
	for _, q := range topology.Queues {
		queues[q.Name] = q
	}

	t.Run("declares the dead letter exchange", func(t *testing.T) {
		require.Len(t, topology.Exchanges, 1)
		assert.Equal(t, DeadLetterExchange, topology.Exchanges[0].Name)
		assert.Equal(t, "direct", topology.Exchanges[0].Type)
		assert.True(t, topology.Exchanges[0].Durable)
	})

	t.Run("durable queues dead-letter into per-queue dead queues", func(t *testing.T) {
		for _, name := range []string{BillingQueue, NotificationQueue, EmailQueue} {
			q, ok := queues[name]
			require.True(t, ok, "queue %s declared", name)
			assert.True(t, q.Durable)
			assert.Equal(t, DeadLetterExchange, q.Arguments["x-dead-letter-exchange"])
			assert.Equal(t, name, q.Arguments["x-dead-letter-routing-key"])

			dead, ok := queues[name+DeadLetterSuffix]
			require.True(t, ok, "dead queue for %s declared", name)
			assert.True(t, dead.Durable)
		}
	})

	t.Run("transient queue is non-durable with no dead letter routing", func(t *testing.T) {
		q, ok := queues[TransientQueue]
		require.True(t, ok)
		assert.False(t, q.Durable)
		assert.Nil(t, q.Arguments)
		_, hasDead := queues[TransientQueue+DeadLetterSuffix]
		assert.False(t, hasDead)
	})

	t.Run("bindings route each dead queue through the exchange", func(t *testing.T) {
		require.Len(t, topology.Bindings, 3)
		for _, b := range topology.Bindings {
			assert.Equal(t, DeadLetterExchange, b.Exchange)
			assert.Equal(t, b.RoutingKey+DeadLetterSuffix, b.Queue)
		}
	})
}
