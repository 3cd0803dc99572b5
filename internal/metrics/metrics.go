// Package metrics exposes Prometheus collectors for the HTTP layer and the
// ledger operations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several servers (and tests) can coexist
// in one process.
type Metrics struct {
	registry        *prometheus.Registry
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	entries         *prometheus.CounterVec
	sessions        prometheus.GaugeFunc
}

// New creates and registers all collectors. activeSessions may be nil.
func New(activeSessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taxiledger",
				Name:      "requests_total",
				Help:      "How many HTTP requests processed, partitioned by status code, method and route.",
			},
			[]string{"code", "method", "route"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "taxiledger",
				Name:      "request_duration_seconds",
				Help:      "The HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code", "method", "route"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taxiledger",
				Name:      "logins_total",
				Help:      "Login attempts partitioned by outcome.",
			},
			[]string{"outcome"},
		),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "taxiledger",
				Name:      "entry_operations_total",
				Help:      "Ledger entry mutations partitioned by operation.",
			},
			[]string{"op"},
		),
	}

	collectors := []prometheus.Collector{m.requestCount, m.requestDuration, m.logins, m.entries}
	if activeSessions != nil {
		m.sessions = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "taxiledger",
				Name:      "active_sessions",
				Help:      "Number of open sessions.",
			},
			func() float64 { return float64(activeSessions()) },
		)
		collectors = append(collectors, m.sessions)
	}
	m.registry.MustRegister(collectors...)
	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.requestCount.WithLabelValues(code, method, route).Inc()
	m.requestDuration.WithLabelValues(code, method, route).Observe(elapsed.Seconds())
}

// ObserveLogin counts a login attempt by outcome.
func (m *Metrics) ObserveLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveEntry counts an entry mutation.
func (m *Metrics) ObserveEntry(op string) {
	m.entries.WithLabelValues(op).Inc()
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
