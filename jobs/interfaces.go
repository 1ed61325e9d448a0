package jobs

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
)

// Acknowledger routes a worker's terminal decision back to the broker.
// Exactly one of Ack or Reject is invoked per handled delivery.
type Acknowledger interface {
	Ack() error
	Reject(requeue bool) error
}

// deliveryAcknowledger adapts an AMQP delivery to the Acknowledger interface.
type deliveryAcknowledger struct {
	delivery amqp.Delivery
}

func (a deliveryAcknowledger) Ack() error {
	return a.delivery.Ack(false)
}

func (a deliveryAcknowledger) Reject(requeue bool) error {
	return a.delivery.Nack(false, requeue)
}

// Delegate is the downstream operation a worker invokes for each message.
// A nil return means the unit of work completed; a fatal error stops retries.
type Delegate func(ctx context.Context, msg *contracts.JobMessage) error

// BillingProcessor handles a billing webhook event.
type BillingProcessor interface {
	Process(ctx context.Context, event BillingEvent) error
}

// BillingEvent is the billing worker's view of a job message.
type BillingEvent struct {
	EventID    string
	EventType  string
	Payload    string
	ReceivedAt string
}

// ChannelResults maps a notification channel name to its delivery error,
// nil meaning the channel succeeded. Channel failures are a property of the
// payload or recipient, not of the infrastructure, so they never fail the
// message.
type ChannelResults map[string]error

// Failed returns the names of channels that reported an error.
func (r ChannelResults) Failed() []string {
	var failed []string
	for channel, err := range r {
		if err != nil {
			failed = append(failed, channel)
		}
	}
	return failed
}

// NotificationDispatcher fans a notification out across delivery channels.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, n Notification) (ChannelResults, error)
}

// Notification is the notification worker's view of a job message.
type Notification struct {
	Type      string
	Addressee string
	Data      map[string]any
}

// EmailSender delivers a single email synchronously. It backs both the email
// worker and the publisher's broker-unavailable fallback paths.
type EmailSender interface {
	Send(ctx context.Context, email contracts.Email) error
}
