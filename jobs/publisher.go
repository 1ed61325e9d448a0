package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/rabbitmq"
)

// FallbackStrategy selects publisher behavior when no broker channel pool is
// available at enqueue time.
type FallbackStrategy string

const (
	// FallbackAsyncThread delivers on a detached goroutine so the caller is
	// not blocked and broker unavailability stays invisible to the request
	// path. The default.
	FallbackAsyncThread FallbackStrategy = "async_thread"
	// FallbackSync delivers synchronously in the caller's stack.
	FallbackSync FallbackStrategy = "sync"
	// FallbackRaise surfaces a delivery error immediately.
	FallbackRaise FallbackStrategy = "raise"
	// FallbackNone silently does nothing.
	FallbackNone FallbackStrategy = "none"

	// DefaultFallback is applied when the caller passes an empty strategy.
	DefaultFallback = FallbackAsyncThread
)

// valid reports whether the strategy is a recognized value.
func (s FallbackStrategy) valid() bool {
	switch s {
	case FallbackAsyncThread, FallbackSync, FallbackRaise, FallbackNone:
		return true
	}
	return false
}

// Publisher turns logical sends into broker publishes. The channel pool is an
// injected, nullable handle: under a prefork model the broker connection may
// be gone at any call, and every operation must tolerate that instead of
// assuming a live connection.
//
// Publish generates a fresh UUID message id per call, which makes the
// Publisher the sole source of idempotency keys for the consumer side.
type Publisher struct {
	pool   *rabbitmq.ChannelPool
	broker *rabbitmq.Publisher
	sender EmailSender
	logger *slog.Logger
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithEmailSender sets the synchronous deliverer used by fallback paths.
func WithEmailSender(sender EmailSender) PublisherOption {
	return func(p *Publisher) {
		p.sender = sender
	}
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a Publisher. A nil pool represents "broker
// unavailable" and routes email sends through their fallback strategy.
func NewPublisher(pool *rabbitmq.ChannelPool, options ...PublisherOption) *Publisher {
	p := &Publisher{
		pool:   pool,
		logger: slog.Default(),
	}
	if pool != nil {
		p.broker = rabbitmq.NewPublisher(pool)
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Publish serializes payload and publishes it persistently to the default
// exchange with routingKey = queue and a freshly generated message id, which
// it returns.
func (p *Publisher) Publish(ctx context.Context, queue string, payload any) (string, error) {
	return p.publish(ctx, queue, queue, payload, true)
}

func (p *Publisher) publish(ctx context.Context, queue, routingKey string, payload any, persistent bool) (string, error) {
	if p.broker == nil {
		return "", contracts.ErrBrokerUnavailable
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload for %s: %w", queue, err)
	}

	deliveryMode := amqp.Transient
	if persistent {
		deliveryMode = amqp.Persistent
	}

	messageID := uuid.NewString()
	msg := amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    messageID,
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := p.broker.Publish(ctx, "", routingKey, msg); err != nil {
		return "", err
	}

	p.logger.Debug("published message",
		"queue", queue,
		"messageId", messageID,
		"persistent", persistent,
	)
	return messageID, nil
}

// EnqueueEmail queues a templated email for asynchronous delivery. With no
// broker pool the configured fallback strategy runs instead. An unrecognized
// strategy is an argument error, returned before any delivery is attempted.
func (p *Publisher) EnqueueEmail(ctx context.Context, template string, data map[string]any, fallback FallbackStrategy) error {
	if fallback == "" {
		fallback = DefaultFallback
	}
	if !fallback.valid() {
		return fmt.Errorf("%w: %q", contracts.ErrInvalidFallback, fallback)
	}

	if p.broker != nil {
		_, err := p.Publish(ctx, rabbitmq.EmailQueue, contracts.JobMessage{
			Type:       emailMessageType,
			Template:   template,
			Data:       data,
			ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return err
	}

	return p.runFallback(ctx, fallback, contracts.Email{Template: template, Data: data})
}

// EnqueueEmailRaw queues a pre-rendered email, with the same fallback
// contract as EnqueueEmail.
func (p *Publisher) EnqueueEmailRaw(ctx context.Context, email contracts.Email, fallback FallbackStrategy) error {
	if fallback == "" {
		fallback = DefaultFallback
	}
	if !fallback.valid() {
		return fmt.Errorf("%w: %q", contracts.ErrInvalidFallback, fallback)
	}

	if p.broker != nil {
		_, err := p.Publish(ctx, rabbitmq.EmailQueue, contracts.JobMessage{
			Type:       emailRawMessageType,
			Data:       rawEmailData(email),
			ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return err
	}

	return p.runFallback(ctx, fallback, email)
}

func rawEmailData(email contracts.Email) map[string]any {
	data := make(map[string]any, len(email.Data)+3)
	for k, v := range email.Data {
		data[k] = v
	}
	if email.To != "" {
		data["to"] = email.To
	}
	if email.Subject != "" {
		data["subject"] = email.Subject
	}
	if email.Body != "" {
		data["body"] = email.Body
	}
	return data
}

// runFallback executes the selected degraded-mode delivery. The async
// strategy spawns one detached goroutine per call; fallback only runs while
// the broker is already down, so the unbounded spawn is an accepted
// trade-off on a low-frequency path.
func (p *Publisher) runFallback(ctx context.Context, fallback FallbackStrategy, email contracts.Email) error {
	switch fallback {
	case FallbackAsyncThread:
		go func() {
			if err := p.deliver(context.Background(), email); err != nil {
				p.logger.Error("async fallback delivery failed", "error", err)
			}
		}()
		return nil

	case FallbackSync:
		return p.deliver(ctx, email)

	case FallbackRaise:
		return contracts.ErrBrokerUnavailable

	case FallbackNone:
		return nil

	default:
		return fmt.Errorf("%w: %q", contracts.ErrInvalidFallback, fallback)
	}
}

func (p *Publisher) deliver(ctx context.Context, email contracts.Email) error {
	if p.sender == nil {
		return fmt.Errorf("%w: no fallback email sender configured", contracts.ErrBrokerUnavailable)
	}
	return p.sender.Send(ctx, email)
}

// EnqueueTransient publishes a fire-and-forget analytics event. It reports
// success as a bool and never returns an error or panics: transient events
// must not be able to destabilize a request path. A blank event type is
// refused; non-map data is coerced to an empty map.
func (p *Publisher) EnqueueTransient(ctx context.Context, eventType string, data any) bool {
	event, ok := transientEvent(eventType, data)
	if !ok {
		return false
	}

	if p.broker == nil {
		return false
	}

	_, err := p.publish(ctx, rabbitmq.TransientQueue, rabbitmq.TransientRoutingKey, event, false)
	if err != nil {
		p.logger.Warn("transient publish failed", "eventType", eventType, "error", err)
		return false
	}
	return true
}

// transientEvent validates and coerces the caller's input into a publishable
// message. A blank event type refuses the event outright.
func transientEvent(eventType string, data any) (contracts.JobMessage, bool) {
	if strings.TrimSpace(eventType) == "" {
		return contracts.JobMessage{}, false
	}

	payload, ok := data.(map[string]any)
	if !ok || payload == nil {
		payload = map[string]any{}
	}

	return contracts.JobMessage{
		EventType: eventType,
		Data:      payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, true
}
