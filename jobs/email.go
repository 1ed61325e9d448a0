package jobs

import (
	"context"
	"fmt"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/rabbitmq"
)

// Message types carried in the JobMessage.Type field on the email queue.
const (
	emailMessageType    = "email"
	emailRawMessageType = "email_raw"
)

// NewEmailWorker builds the email-delivery consumer. It has no internal
// retry loop and keeps no idempotency books: a failed send is rejected with
// requeue, so the broker's own redelivery behavior takes over. Malformed or
// invalid messages dead-letter instead of requeueing.
func NewEmailWorker(sender EmailSender, options ...WorkerOption) *Worker {
	policy := Policy{
		Queue:            rabbitmq.EmailQueue,
		MaxRetries:       0,
		RequeueOnFailure: true,
		Validate:         validateEmailMessage,
	}
	return NewWorker(policy, emailDelegate(sender), options...)
}

func validateEmailMessage(msg *contracts.JobMessage) error {
	switch msg.Type {
	case emailMessageType:
		if msg.Template == "" {
			return fmt.Errorf("%w: missing template", contracts.ErrMissingPayload)
		}
	case emailRawMessageType:
		if len(msg.Data) == 0 {
			return fmt.Errorf("%w: missing rendered email", contracts.ErrMissingPayload)
		}
	default:
		return fmt.Errorf("%w: unknown email message type %q", contracts.ErrInvalidPayload, msg.Type)
	}
	return nil
}

func emailDelegate(sender EmailSender) Delegate {
	return func(ctx context.Context, msg *contracts.JobMessage) error {
		return sender.Send(ctx, emailFromMessage(msg))
	}
}

// emailFromMessage rebuilds the Email a publisher serialized into the body.
func emailFromMessage(msg *contracts.JobMessage) contracts.Email {
	if msg.Type == emailMessageType {
		return contracts.Email{
			To:       msg.Addressee,
			Template: msg.Template,
			Data:     msg.Data,
		}
	}

	email := contracts.Email{Data: msg.Data}
	if to, ok := msg.Data["to"].(string); ok {
		email.To = to
	}
	if subject, ok := msg.Data["subject"].(string); ok {
		email.Subject = subject
	}
	if body, ok := msg.Data["body"].(string); ok {
		email.Body = body
	}
	return email
}
