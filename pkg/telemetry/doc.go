// Package telemetry groups the observability concerns: structured
// logging with secret redaction (logging) and Prometheus metrics
// (metrics).
package telemetry
