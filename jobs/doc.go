// Package jobs implements the producer/consumer contract of the asynchronous
// job-delivery layer.
//
// The Publisher turns logical sends (templated email, raw email, transient
// analytics event) into broker publishes, with configurable fallback
// strategies when the broker is unreachable. The Worker is the shared
// consumer state machine (parse, idempotency check, delegate with bounded
// retry, ack or reject), parameterized by a Policy. Four factories configure
// the specializations: billing (3 retries, idempotent, dead-letter),
// notification (2 retries, idempotent, channel failures are data), email
// (no retry loop, broker redelivery), and transient (fire-and-forget,
// always acks).
//
// Delivery is at-least-once at the transport; the idempotency ledger upgrades
// it to effectively-once application-visible side effects.
package jobs
