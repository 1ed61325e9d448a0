package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/idempotency"
	"github.com/onetimesecret/onetimesecret-sub010/internal/rabbitmq"
)

// DefaultIdempotencyTTL bounds how long a processed-message marker survives.
const DefaultIdempotencyTTL = 24 * time.Hour

// Worker is the shared consumer contract. Every delivery runs the same state
// machine: parse, idempotency check, delegate with bounded retry, then a
// terminal ack or reject. The policy decides retry bounds, fatality, and
// whether idempotency applies at all.
//
// Handle never lets a delegate error escape: every non-panic outcome resolves
// to exactly one Ack or Reject. Panics are deliberately not recovered; a
// programming defect should crash the consumer, not hide behind retry logic.
type Worker struct {
	policy         Policy
	delegate       Delegate
	ledger         idempotency.Ledger
	idempotencyTTL time.Duration
	logger         *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithLedger sets the idempotency ledger.
func WithLedger(ledger idempotency.Ledger) WorkerOption {
	return func(w *Worker) {
		w.ledger = ledger
	}
}

// WithIdempotencyTTL bounds the lifetime of processed-message markers.
func WithIdempotencyTTL(ttl time.Duration) WorkerOption {
	return func(w *Worker) {
		w.idempotencyTTL = ttl
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithRetryDelay overrides the policy's fixed backoff between delegate
// attempts.
func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *Worker) {
		w.policy.RetryDelay = delay
	}
}

// NewWorker builds a worker from a policy and a delegate. Policies that
// enforce idempotency need a ledger; without one the worker falls back to an
// in-memory ledger, which is only meaningful for single-process runs.
func NewWorker(policy Policy, delegate Delegate, options ...WorkerOption) *Worker {
	w := &Worker{
		policy:         policy,
		delegate:       delegate,
		idempotencyTTL: DefaultIdempotencyTTL,
		logger:         slog.Default(),
	}
	for _, opt := range options {
		opt(w)
	}
	if w.ledger == nil {
		w.ledger = idempotency.NewMemoryLedger()
	}
	return w
}

// Queue returns the queue this worker consumes.
func (w *Worker) Queue() string {
	return w.policy.Queue
}

// DeliveryHandler adapts the worker to the broker consumer's handler shape.
func (w *Worker) DeliveryHandler() rabbitmq.DeliveryHandler {
	return func(ctx context.Context, delivery amqp.Delivery) {
		w.Handle(ctx, delivery.Body, contracts.NewEnvelope(delivery), deliveryAcknowledger{delivery: delivery})
	}
}

// Handle runs the state machine for one delivery and returns the terminal
// outcome. Ack/reject transport failures are logged, not surfaced; the
// broker will redeliver an unacked message on its own.
func (w *Worker) Handle(ctx context.Context, body []byte, env *contracts.Envelope, ack Acknowledger) Outcome {
	log := w.logger.With(
		"queue", w.policy.Queue,
		"messageId", env.MessageID,
		"redelivered", env.Redelivered,
	)

	// Without a message id idempotency cannot be enforced, so processing is
	// skipped rather than risking a duplicate side effect.
	if w.policy.EnforceIdempotency && env.MessageID == "" {
		log.Info("skipping delivery without message id")
		w.ack(ack, log)
		return OutcomeSkip
	}

	if version := env.SchemaVersion(); !w.policy.SupportsSchema(version) {
		log.Error("unsupported schema version", "schemaVersion", version)
		return w.terminal(ack, log, contracts.ErrUnsupportedSchema)
	}

	if w.policy.EnforceIdempotency {
		processed, err := w.ledger.IsProcessed(ctx, env.MessageID)
		if err != nil {
			// Best-effort check: a ledger outage must not block processing.
			log.Warn("idempotency check failed, continuing", "error", err)
		}
		if processed {
			log.Info("duplicate delivery, already processed")
			w.ack(ack, log)
			return OutcomeDuplicate
		}
	}

	msg, err := contracts.ParseJobMessage(body)
	if err != nil {
		log.Error("malformed message body", "error", err)
		return w.terminal(ack, log, err)
	}

	if w.policy.Validate != nil {
		if err := w.policy.Validate(msg); err != nil {
			log.Error("message failed validation", "error", err)
			return w.terminal(ack, log, err)
		}
	}

	if err := w.execute(ctx, msg, log); err != nil {
		return w.terminal(ack, log, err)
	}

	if w.policy.EnforceIdempotency {
		if err := w.ledger.MarkProcessed(ctx, env.MessageID, w.idempotencyTTL); err != nil {
			// Worst case is one duplicate execution later, which delegates
			// must tolerate.
			log.Warn("failed to mark message processed", "error", err)
		}
	}
	w.ack(ack, log)
	return OutcomeAck
}

// execute invokes the delegate with the policy's bounded retry. Fatal errors
// stop the loop immediately; anything else is retried after RetryDelay until
// the attempt budget is spent.
func (w *Worker) execute(ctx context.Context, msg *contracts.JobMessage, log *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt <= w.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Warn("retrying delegate",
				"attempt", attempt+1,
				"maxAttempts", w.policy.MaxRetries+1,
				"error", lastErr,
			)
			select {
			case <-time.After(w.policy.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := w.delegate(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if contracts.IsFatal(err) {
			return err
		}
	}
	return lastErr
}

// terminal resolves a failed delivery. Always-ack policies swallow the error
// and acknowledge. Fatal conditions (parse, validation, schema) dead-letter
// regardless of policy: requeueing a permanently bad message would loop it
// forever. Context cancellation requeues regardless of policy: a shutdown
// mid-retry is not a message fault. Only delegate failures follow
// RequeueOnFailure.
func (w *Worker) terminal(ack Acknowledger, log *slog.Logger, cause error) Outcome {
	if w.policy.AlwaysAck {
		log.Info("ignoring failure on fire-and-forget queue", "error", cause)
		w.ack(ack, log)
		return OutcomeAck
	}

	requeue := w.policy.RequeueOnFailure
	switch {
	case contracts.IsFatal(cause):
		requeue = false
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		requeue = true
	}

	log.Error("rejecting delivery",
		"error", cause,
		"requeue", requeue,
	)
	if err := ack.Reject(requeue); err != nil {
		log.Error("failed to reject delivery", "error", err)
	}
	return OutcomeReject
}

func (w *Worker) ack(ack Acknowledger, log *slog.Logger) {
	if err := ack.Ack(); err != nil {
		log.Error("failed to ack delivery", "error", err)
	}
}
