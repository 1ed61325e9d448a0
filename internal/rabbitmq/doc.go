// Package rabbitmq provides the broker plumbing under the job-delivery layer.
//
// This package includes:
//   - ConnectionManager: connection ownership with automatic reconnection and
//     the quiesce/resume lifecycle required under a prefork process model
//   - ChannelPool: bounded channel pooling with idle cleanup
//   - Publisher: confirmed publishing with bounded retry
//   - Consumer: per-queue delivery pumps where the handler owns ack/reject
//   - TopologyManager: queue, exchange, and dead-letter declarations
package rabbitmq
