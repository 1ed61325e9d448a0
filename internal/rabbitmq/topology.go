package rabbitmq

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names for the job-delivery layer, plus the dead-letter topology that
// catches rejected billing, notification, and email messages. The transient
// queue is non-durable and has no dead-letter routing: losing its messages
// is acceptable.
const (
	BillingQueue      = "billing.event.process"
	NotificationQueue = "notification.alert"
	EmailQueue        = "email.immediate"
	TransientQueue    = "system.transient"

	TransientRoutingKey = "system.transient"

	DeadLetterExchange = "jobs.dlx"
	DeadLetterSuffix   = ".dead"
)

// ExchangeDeclaration defines an exchange to be declared.
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// QueueDeclaration defines a queue to be declared.
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// Binding defines a queue-to-exchange binding.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

// Topology is the complete set of declarations for the messaging layer.
type Topology struct {
	Exchanges []ExchangeDeclaration
	Queues    []QueueDeclaration
	Bindings  []Binding
}

// JobTopology builds the standard topology: durable work queues that
// dead-letter into per-queue .dead queues via jobs.dlx, and the non-durable
// transient queue.
func JobTopology() Topology {
	t := Topology{
		Exchanges: []ExchangeDeclaration{
			{Name: DeadLetterExchange, Type: "direct", Durable: true},
		},
	}

	for _, queue := range []string{BillingQueue, NotificationQueue, EmailQueue} {
		t.Queues = append(t.Queues,
			QueueDeclaration{
				Name:    queue,
				Durable: true,
				Arguments: amqp.Table{
					"x-dead-letter-exchange":    DeadLetterExchange,
					"x-dead-letter-routing-key": queue,
				},
			},
			QueueDeclaration{
				Name:    queue + DeadLetterSuffix,
				Durable: true,
			},
		)
		t.Bindings = append(t.Bindings, Binding{
			Queue:      queue + DeadLetterSuffix,
			Exchange:   DeadLetterExchange,
			RoutingKey: queue,
		})
	}

	t.Queues = append(t.Queues, QueueDeclaration{
		Name:    TransientQueue,
		Durable: false,
	})

	return t
}

// TopologyManager declares exchanges, queues, and bindings.
type TopologyManager struct {
	pool *ChannelPool
}

// NewTopologyManager creates a topology manager over the given pool.
func NewTopologyManager(pool *ChannelPool) *TopologyManager {
	return &TopologyManager{pool: pool}
}

// Declare declares the complete topology.
func (tm *TopologyManager) Declare(ctx context.Context, topology Topology) error {
	return tm.pool.Execute(ctx, func(ch *amqp.Channel) error {
		for _, exchange := range topology.Exchanges {
			if err := ch.ExchangeDeclare(
				exchange.Name,
				exchange.Type,
				exchange.Durable,
				exchange.AutoDelete,
				false, // internal
				false, // noWait
				exchange.Arguments,
			); err != nil {
				return &TopologyError{Component: "exchange", Name: exchange.Name, Op: "declare", Err: err}
			}
		}

		for _, queue := range topology.Queues {
			if _, err := ch.QueueDeclare(
				queue.Name,
				queue.Durable,
				queue.AutoDelete,
				queue.Exclusive,
				false, // noWait
				queue.Arguments,
			); err != nil {
				return &TopologyError{Component: "queue", Name: queue.Name, Op: "declare", Err: err}
			}
		}

		for _, binding := range topology.Bindings {
			if err := ch.QueueBind(
				binding.Queue,
				binding.RoutingKey,
				binding.Exchange,
				false, // noWait
				binding.Arguments,
			); err != nil {
				return &TopologyError{Component: "binding", Name: binding.Queue, Op: "bind", Err: err}
			}
		}

		return nil
	})
}
