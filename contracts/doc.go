// Package contracts defines the shared data types exchanged between the
// publisher and worker sides of the job-delivery layer: the delivery
// Envelope, the JobMessage body schema, and the error taxonomy used to
// classify failures as fatal or retryable.
package contracts
