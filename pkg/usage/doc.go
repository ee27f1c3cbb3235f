// Package usage tracks what the gateway spends: per-request token
// counts and computed cost, a bounded on-disk history, and a live
// in-flight counter mirrored to Prometheus.
package usage
