package usage

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Inflight counts requests currently being served, keyed by model and
// by (connection, model). The per-model counts are mirrored to a
// Prometheus gauge.
type Inflight struct {
	mu      sync.Mutex
	byModel map[string]int
	byConn  map[connModel]int
	gauge   *prometheus.GaugeVec
}

type connModel struct {
	conn  string
	model string
}

// NewInflight builds the counter and registers its gauge. A nil
// registry skips registration, which the tests use.
func NewInflight(registry *prometheus.Registry) *Inflight {
	i := &Inflight{
		byModel: map[string]int{},
		byConn:  map[connModel]int{},
		gauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "helios",
				Name:      "inflight_requests",
				Help:      "Requests currently being served",
			},
			[]string{"provider", "model"},
		),
	}
	if registry != nil {
		registry.MustRegister(i.gauge)
	}
	return i
}

// Start marks one request in flight and returns the matching done
// function. Done is idempotent.
func (i *Inflight) Start(provider, connID, model string) func() {
	i.mu.Lock()
	i.byModel[model]++
	i.byConn[connModel{connID, model}]++
	i.mu.Unlock()
	i.gauge.WithLabelValues(provider, model).Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			i.mu.Lock()
			i.dec(i.byModel, model)
			i.decConn(connModel{connID, model})
			i.mu.Unlock()
			i.gauge.WithLabelValues(provider, model).Dec()
		})
	}
}

// ByModel returns a copy of the per-model counts.
func (i *Inflight) ByModel() map[string]int {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string]int, len(i.byModel))
	for k, v := range i.byModel {
		out[k] = v
	}
	return out
}

// ForConnection returns how many requests a connection is serving for
// one model.
func (i *Inflight) ForConnection(connID, model string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.byConn[connModel{connID, model}]
}

func (i *Inflight) dec(m map[string]int, key string) {
	if m[key] <= 1 {
		delete(m, key)
		return
	}
	m[key]--
}

func (i *Inflight) decConn(key connModel) {
	if i.byConn[key] <= 1 {
		delete(i.byConn, key)
		return
	}
	i.byConn[key]--
}
