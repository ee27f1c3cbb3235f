package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the gateway's Prometheus metrics and their registry.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	fallbackTotal   *prometheus.CounterVec
}

// NewCollector builds and registers the metric set. A nil registry
// gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "requests_total",
				Help:      "Requests served, by provider, model, and status class",
			},
			[]string{"provider", "model", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "helios",
				Name:      "request_duration_seconds",
				Help:      "Wall-clock duration of upstream requests",
				// Long tail on purpose: streaming completions run for
				// tens of seconds.
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "tokens_total",
				Help:      "Tokens processed, by provider, model, and direction",
			},
			[]string{"provider", "model", "direction"},
		),
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "cost_usd_total",
				Help:      "Computed request cost in USD",
			},
			[]string{"provider", "model"},
		),
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "credential_refresh_total",
				Help:      "Credential refresh attempts, by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		fallbackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "helios",
				Name:      "fallback_total",
				Help:      "Fallbacks to another connection, by provider and reason",
			},
			[]string{"provider", "reason"},
		),
	}

	registry.MustRegister(
		c.requestsTotal,
		c.requestDuration,
		c.tokensTotal,
		c.costTotal,
		c.refreshTotal,
		c.fallbackTotal,
	)
	return c
}

// RecordRequest records one completed request.
func (c *Collector) RecordRequest(provider, model, status string, duration time.Duration) {
	c.requestsTotal.WithLabelValues(provider, model, status).Inc()
	c.requestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
}

// RecordTokens records token throughput for one request.
func (c *Collector) RecordTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		c.tokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}

// RecordCost records the computed cost for one request.
func (c *Collector) RecordCost(provider, model string, usd float64) {
	if usd > 0 {
		c.costTotal.WithLabelValues(provider, model).Add(usd)
	}
}

// RecordRefresh records one credential refresh attempt. Outcome is
// "success", "declined", or "error".
func (c *Collector) RecordRefresh(provider, outcome string) {
	c.refreshTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordFallback records a switch to another connection. Reason is the
// status class that triggered it ("429", "5xx", "auth", "network").
func (c *Collector) RecordFallback(provider, reason string) {
	c.fallbackTotal.WithLabelValues(provider, reason).Inc()
}

// Registry exposes the underlying registry so other packages can hang
// their own metrics off it.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the scrape endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
