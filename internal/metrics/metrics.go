// Package metrics exposes Prometheus instrumentation for computations and
// price history fetches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pricecast"

// Metrics is the set of collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	ComputeTotal    *prometheus.CounterVec
	ComputeDuration *prometheus.HistogramVec
	SimulatedPaths  prometheus.Counter
	DataFetchTotal  *prometheus.CounterVec
	WSClients       prometheus.Gauge
}

// New creates a Metrics backed by its own registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ComputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_total",
			Help:      "Computations by method and outcome.",
		}, []string{"method", "outcome"}),
		ComputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Computation latency by method.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
		}, []string{"method"}),
		SimulatedPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulated_paths_total",
			Help:      "Monte Carlo paths simulated.",
		}),
		DataFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_fetch_total",
			Help:      "Price history loads by source and outcome.",
		}, []string{"source", "outcome"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}
	reg.MustRegister(
		m.ComputeTotal,
		m.ComputeDuration,
		m.SimulatedPaths,
		m.DataFetchTotal,
		m.WSClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCompute records one computation. kind is the error kind, or empty
// on success.
func (m *Metrics) ObserveCompute(method, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if kind != "" {
		outcome = kind
	}
	m.ComputeTotal.WithLabelValues(method, outcome).Inc()
	m.ComputeDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// AddPaths counts simulated Monte Carlo paths.
func (m *Metrics) AddPaths(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SimulatedPaths.Add(float64(n))
}

// ObserveFetch records one price history load.
func (m *Metrics) ObserveFetch(source string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DataFetchTotal.WithLabelValues(source, outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
