// Package metrics exposes Prometheus metrics for the gateway: request
// counts and latency, token throughput, computed cost, and credential
// refresh outcomes.
package metrics
