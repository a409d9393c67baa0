// Package observability provides an extension that records system-wide
// job lifecycle counters (enqueued, completed, failed, retried, timed
// out, cancelled) via go-utils' MetricFactory. Register a
// MetricsExtension with an ext.Registry to track these counts across
// every Runner in a Client or Pool.
//
// For per-attempt tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
