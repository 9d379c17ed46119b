// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Run outcomes and durations
//   - League fetch results and provider quota
//   - Fixture match rates
//   - Snapshot write outcomes (stored, duplicate, conflict, invalid)
//   - Canonical record writes and radar size
//   - Publisher failures per sink
//
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics
