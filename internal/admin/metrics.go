package admin

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus counters exposed at GET /admin/metrics. It is
// additive instrumentation over state already tracked by the registry and
// records — it introduces no new core logic, only observes it.
type Metrics struct {
	registry *prometheus.Registry

	ForwardedTotal  *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	TransitionTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the admin metric set on a dedicated
// registry, so it never collides with a process-global default registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ForwardedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "golb_forwarded_requests_total",
			Help: "Total number of requests forwarded to a backend, labeled by outcome.",
		}, []string{"outcome"}),
		RetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "golb_forward_retries_total",
			Help: "Total number of retries issued after a transport failure.",
		}),
		TransitionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "golb_backend_transitions_total",
			Help: "Total number of backend health transitions, labeled by new state.",
		}, []string{"state"}),
	}

	reg.MustRegister(m.ForwardedTotal, m.RetriesTotal, m.TransitionTotal)
	return m
}

// Handler returns the http.Handler serving this Metrics set's registry in
// the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
