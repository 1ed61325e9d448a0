// Package stats provides the rolling counters fed by fire-and-forget
// analytics events. Counters are hour-bucketed and expire on their own;
// losing an increment is acceptable by design.
package stats
