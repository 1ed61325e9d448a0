package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher performs confirmed publishes over pooled channels.
type Publisher struct {
	pool           *ChannelPool
	confirmTimeout time.Duration
	publishTimeout time.Duration
	maxRetries     int
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithConfirmTimeout sets how long to wait for a broker confirmation.
func WithConfirmTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.confirmTimeout = timeout
	}
}

// WithPublishTimeout sets the overall publish deadline.
func WithPublishTimeout(timeout time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.publishTimeout = timeout
	}
}

// WithPublishRetries sets the number of additional publish attempts.
func WithPublishRetries(retries int) PublisherOption {
	return func(p *Publisher) {
		p.maxRetries = retries
	}
}

// NewPublisher creates a publisher over the given channel pool.
func NewPublisher(pool *ChannelPool, options ...PublisherOption) *Publisher {
	p := &Publisher{
		pool:           pool,
		confirmTimeout: 5 * time.Second,
		publishTimeout: 10 * time.Second,
		maxRetries:     3,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Publish publishes a message with confirmation, retrying transient failures
// with a linearly growing delay.
func (p *Publisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.publishTimeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := p.publishWithConfirm(ctx, exchange, routingKey, msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("failed to publish after %d attempts: %w", p.maxRetries+1, lastErr)
}

func (p *Publisher) publishWithConfirm(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	ch, err := p.pool.Get(ctx)
	if err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err, Timestamp: time.Now()}
	}
	defer p.pool.Put(ch)

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable confirms: %w", err)
	}

	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	if err := ch.PublishWithContext(ctx, exchange, routingKey, false, false, msg); err != nil {
		return &PublishError{Exchange: exchange, RoutingKey: routingKey, Err: err, Timestamp: time.Now()}
	}

	select {
	case confirm := <-confirms:
		if !confirm.Ack {
			return ErrPublishNotConfirmed
		}
		return nil

	case ret := <-returns:
		return &PublishError{
			Exchange:   exchange,
			RoutingKey: routingKey,
			Err:        fmt.Errorf("message returned: %s", ret.ReplyText),
			Timestamp:  time.Now(),
		}

	case <-time.After(p.confirmTimeout):
		return ErrPublishTimeout

	case <-ctx.Done():
		return ctx.Err()
	}
}
