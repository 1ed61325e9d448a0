package rabbitmq

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// Connection errors
	ErrConnectionClosed   = errors.New("rabbitmq: connection is closed")
	ErrConnectionNotReady = errors.New("rabbitmq: connection not ready")
	ErrConnectionTimeout  = errors.New("rabbitmq: connection timeout")
	ErrQuiesced           = errors.New("rabbitmq: connection quiesced for fork")

	// Channel errors
	ErrChannelPoolClosed     = errors.New("rabbitmq: channel pool is closed")
	ErrChannelPoolExhausted  = errors.New("rabbitmq: channel pool exhausted")
	ErrChannelCreationFailed = errors.New("rabbitmq: failed to create channel")

	// Publisher errors
	ErrPublishNotConfirmed = errors.New("rabbitmq: publish not confirmed")
	ErrPublishTimeout      = errors.New("rabbitmq: publish timeout")

	// General errors
	ErrInvalidConfiguration = errors.New("rabbitmq: invalid configuration")
)

// ConnectionError wraps a connection-level failure with context.
type ConnectionError struct {
	Op        string
	URL       string // sanitized
	Err       error
	Timestamp time.Time
	Attempts  int
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("rabbitmq connection error: %s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ChannelError wraps a channel-level failure with context.
type ChannelError struct {
	Op        string
	ChannelID string
	Err       error
	Timestamp time.Time
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("rabbitmq channel error: %s on channel %s: %v", e.Op, e.ChannelID, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// PublishError wraps a failed publish attempt.
type PublishError struct {
	Exchange   string
	RoutingKey string
	Err        error
	Timestamp  time.Time
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("rabbitmq publish error: failed to publish to %s/%s: %v", e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ConsumerError wraps a consumer-level failure.
type ConsumerError struct {
	Queue       string
	ConsumerTag string
	Op          string
	Err         error
	Timestamp   time.Time
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("rabbitmq consumer error: %s failed for consumer %s on queue %s: %v",
		e.Op, e.ConsumerTag, e.Queue, e.Err)
}

func (e *ConsumerError) Unwrap() error { return e.Err }

// TopologyError wraps a failed exchange/queue/binding declaration.
type TopologyError struct {
	Component string
	Name      string
	Op        string
	Err       error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("rabbitmq topology error: failed to %s %s %q: %v", e.Op, e.Component, e.Name, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

// SanitizeURL strips credentials from an AMQP URL for logging.
func SanitizeURL(url string) string {
	at := strings.LastIndex(url, "@")
	if at < 0 {
		return url
	}
	scheme := strings.Index(url, "//")
	if scheme < 0 || scheme+2 > at {
		return "***"
	}
	return url[:scheme+2] + "***" + url[at:]
}
