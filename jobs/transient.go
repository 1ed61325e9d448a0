package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/onetimesecret/onetimesecret-sub010/contracts"
	"github.com/onetimesecret/onetimesecret-sub010/internal/rabbitmq"
	"github.com/onetimesecret/onetimesecret-sub010/internal/stats"
)

// EventKind identifies a transient analytics event. The set is closed:
// routing happens through a lookup table and unknown kinds fall through to a
// no-op rather than an error.
type EventKind string

const (
	EventSecretCreated  EventKind = "secret_created"
	EventSecretViewed   EventKind = "secret_viewed"
	EventSecretBurned   EventKind = "secret_burned"
	EventDomainVerified EventKind = "domain_verified"
	EventSessionOpened  EventKind = "session_opened"
)

type transientHandler func(ctx context.Context, data map[string]any, at time.Time) error

// TransientRouter maps event kinds to their counter updates.
type TransientRouter struct {
	recorder stats.Recorder
	handlers map[EventKind]transientHandler
	logger   *slog.Logger
}

// NewTransientRouter builds the router over a stats recorder.
func NewTransientRouter(recorder stats.Recorder, logger *slog.Logger) *TransientRouter {
	if logger == nil {
		logger = slog.Default()
	}
	r := &TransientRouter{
		recorder: recorder,
		logger:   logger,
	}
	r.handlers = map[EventKind]transientHandler{
		EventSecretCreated:  r.count("secrets.created"),
		EventSecretViewed:   r.count("secrets.viewed"),
		EventSecretBurned:   r.count("secrets.burned"),
		EventDomainVerified: r.count("domains.verified"),
		EventSessionOpened:  r.count("sessions.opened"),
	}
	return r
}

func (r *TransientRouter) count(counter string) transientHandler {
	return func(ctx context.Context, data map[string]any, at time.Time) error {
		return r.recorder.Increment(ctx, counter, at)
	}
}

// Route dispatches one event to its handler. Unknown kinds are a no-op.
func (r *TransientRouter) Route(ctx context.Context, msg *contracts.JobMessage) error {
	handler, ok := r.handlers[EventKind(msg.EventType)]
	if !ok {
		r.logger.Debug("ignoring unknown transient event", "eventType", msg.EventType)
		return nil
	}
	return handler(ctx, msg.Data, eventTime(msg))
}

// eventTime parses the message timestamp, falling back to now.
func eventTime(msg *contracts.JobMessage) time.Time {
	if msg.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339, msg.Timestamp); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

// NewTransientWorker builds the fire-and-forget consumer. It never rejects
// and never retries: malformed bodies, unknown event kinds, and recorder
// errors are all swallowed and the message is acknowledged, because the
// queue is non-durable and data loss is acceptable by design.
func NewTransientWorker(recorder stats.Recorder, options ...WorkerOption) *Worker {
	policy := Policy{
		Queue:     rabbitmq.TransientQueue,
		AlwaysAck: true,
	}
	w := NewWorker(policy, nil, options...)
	router := NewTransientRouter(recorder, w.logger)
	w.delegate = router.Route
	return w
}
