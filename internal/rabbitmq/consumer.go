package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeliveryHandler processes one delivery. The handler owns acknowledgment:
// it must ack or reject the delivery itself, exactly once.
type DeliveryHandler func(ctx context.Context, delivery amqp.Delivery)

// Consumer pulls deliveries from queues and hands them to handlers one at a
// time per consumer. Prefetch defaults to 1 so the broker never dispatches a
// second message while the prior one is unacked.
type Consumer struct {
	pool            *ChannelPool
	prefetchCount   int
	consumerTag     string
	logger          *slog.Logger
	activeConsumers sync.Map
}

// ConsumerOption configures the consumer.
type ConsumerOption func(*Consumer)

// WithPrefetchCount sets the per-consumer prefetch count.
func WithPrefetchCount(count int) ConsumerOption {
	return func(c *Consumer) {
		c.prefetchCount = count
	}
}

// WithConsumerTag sets the consumer tag.
func WithConsumerTag(tag string) ConsumerOption {
	return func(c *Consumer) {
		c.consumerTag = tag
	}
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(logger *slog.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// NewConsumer creates a consumer over the given channel pool.
func NewConsumer(pool *ChannelPool, options ...ConsumerOption) *Consumer {
	c := &Consumer{
		pool:          pool,
		prefetchCount: 1,
		logger:        slog.Default(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type consumerInfo struct {
	queue   string
	channel *PooledChannel
	cancel  context.CancelFunc
	done    chan struct{}
}

// Subscribe starts consuming from queue, invoking handler per delivery.
func (c *Consumer) Subscribe(ctx context.Context, queue string, handler DeliveryHandler) error {
	ch, err := c.pool.Get(ctx)
	if err != nil {
		return &ConsumerError{Queue: queue, ConsumerTag: c.consumerTag, Op: "subscribe", Err: err, Timestamp: time.Now()}
	}

	if err := ch.Qos(c.prefetchCount, 0, false); err != nil {
		c.pool.Put(ch)
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := ch.Consume(queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		c.pool.Put(ch)
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	info := &consumerInfo{
		queue:   queue,
		channel: ch,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.activeConsumers.Store(queue, info)

	go c.pump(consumerCtx, info, deliveries, handler)

	c.logger.Info("subscribed to queue",
		"queue", queue,
		"prefetchCount", c.prefetchCount,
	)
	return nil
}

// pump forwards deliveries to the handler until the context ends or the
// delivery channel closes.
func (c *Consumer) pump(ctx context.Context, info *consumerInfo, deliveries <-chan amqp.Delivery, handler DeliveryHandler) {
	defer func() {
		close(info.done)
		c.pool.Put(info.channel)
		c.activeConsumers.Delete(info.queue)
		c.logger.Info("consumer stopped", "queue", info.queue)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", info.queue)
				return
			}
			handler(ctx, delivery)
		}
	}
}

// Unsubscribe stops consuming from a queue and waits for its pump to exit.
func (c *Consumer) Unsubscribe(queue string) error {
	value, ok := c.activeConsumers.Load(queue)
	if !ok {
		return fmt.Errorf("no active consumer for queue: %s", queue)
	}
	info := value.(*consumerInfo)
	info.cancel()
	<-info.done
	return nil
}

// UnsubscribeAll stops every active consumer.
func (c *Consumer) UnsubscribeAll() error {
	var wg sync.WaitGroup
	c.activeConsumers.Range(func(key, value interface{}) bool {
		wg.Add(1)
		go func(queue string) {
			defer wg.Done()
			if err := c.Unsubscribe(queue); err != nil {
				c.logger.Error("failed to unsubscribe", "queue", queue, "error", err)
			}
		}(key.(string))
		return true
	})
	wg.Wait()
	return nil
}

// ActiveQueues returns the queues currently being consumed.
func (c *Consumer) ActiveQueues() []string {
	var queues []string
	c.activeConsumers.Range(func(key, value interface{}) bool {
		queues = append(queues, key.(string))
		return true
	})
	return queues
}
