// Package idempotency provides the processed-message ledger that upgrades the
// broker's at-least-once delivery to effectively-once application-visible
// side effects. Keys follow the "job:processed:<messageId>" scheme and expire
// after a configured TTL.
package idempotency
