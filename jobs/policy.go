package jobs

import (
	"time"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
)

// Policy captures everything that differs between worker specializations.
// The base contract is one state machine; specializations supply a Policy
// and a Delegate instead of overriding behavior.
type Policy struct {
	// Queue is the queue this worker consumes, used for logging and
	// subscription wiring.
	Queue string

	// MaxRetries is the number of additional delegate attempts after the
	// first, so total attempts = MaxRetries + 1.
	MaxRetries int

	// RetryDelay is the fixed sleep between delegate attempts.
	RetryDelay time.Duration

	// EnforceIdempotency gates the message-id guard, the ledger check
	// before execution, and the ledger mark after success.
	EnforceIdempotency bool

	// AlwaysAck acknowledges every message regardless of outcome. Set only
	// for the fire-and-forget worker, whose queue is non-durable and whose
	// messages are disposable.
	AlwaysAck bool

	// RequeueOnFailure requeues instead of dead-lettering when the delegate
	// fails. Set for the email worker, which leans on broker redelivery
	// rather than an internal retry loop.
	RequeueOnFailure bool

	// SupportedSchemas lists the schema versions this worker understands.
	// Empty means only contracts.DefaultSchemaVersion.
	SupportedSchemas []int

	// Validate checks worker-specific required fields after parsing and
	// before delegating. A non-nil error is terminal.
	Validate func(msg *contracts.JobMessage) error
}

// SupportsSchema reports whether the policy accepts the given version.
func (p Policy) SupportsSchema(version int) bool {
	if len(p.SupportedSchemas) == 0 {
		return version == contracts.DefaultSchemaVersion
	}
	for _, v := range p.SupportedSchemas {
		if v == version {
			return true
		}
	}
	return false
}

// Outcome is the terminal result of handling one delivery.
type Outcome int

const (
	// OutcomeAck: the delegate completed (or the policy always acks).
	OutcomeAck Outcome = iota
	// OutcomeSkip: no message id, so idempotency cannot be enforced;
	// acknowledged without executing.
	OutcomeSkip
	// OutcomeDuplicate: already processed; acknowledged without executing.
	OutcomeDuplicate
	// OutcomeReject: rejected back to the broker (dead-letter or requeue).
	OutcomeReject
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeSkip:
		return "skip"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeReject:
		return "reject"
	default:
		return "unknown"
	}
}
