package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/rabbitmq"
)

// Billing retry bounds. Billing events drive financial state and must not be
// silently dropped: bounded retry, then the dead-letter queue.
const (
	billingMaxRetries = 3
	billingRetryDelay = 5 * time.Second
)

// NewBillingWorker builds the billing-webhook consumer. Malformed bodies and
// missing or invalid inner payloads are fatal; every other delegate error is
// retried up to billingMaxRetries additional attempts before dead-lettering.
func NewBillingWorker(processor BillingProcessor, options ...WorkerOption) *Worker {
	policy := Policy{
		Queue:              rabbitmq.BillingQueue,
		MaxRetries:         billingMaxRetries,
		RetryDelay:         billingRetryDelay,
		EnforceIdempotency: true,
		Validate:           validateBillingMessage,
	}
	return NewWorker(policy, billingDelegate(processor), options...)
}

// validateBillingMessage requires a well-formed inner payload before the
// processor is invoked.
func validateBillingMessage(msg *contracts.JobMessage) error {
	if !msg.HasPayload() {
		return contracts.ErrMissingPayload
	}
	if !json.Valid(msg.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", contracts.ErrInvalidPayload)
	}
	switch msg.Payload[0] {
	case '{', '"':
		return nil
	default:
		return fmt.Errorf("%w: payload must be an object or string", contracts.ErrInvalidPayload)
	}
}

func billingDelegate(processor BillingProcessor) Delegate {
	return func(ctx context.Context, msg *contracts.JobMessage) error {
		return processor.Process(ctx, BillingEvent{
			EventID:    msg.EventID,
			EventType:  msg.EventType,
			Payload:    msg.PayloadString(),
			ReceivedAt: msg.ReceivedAt,
		})
	}
}
