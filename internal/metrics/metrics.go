// Package metrics exposes Prometheus collectors for plan executions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK labels successful executions. Failures use their error code.
const OutcomeOK = "OK"

// Metrics holds the engine collectors on a private registry.
//
// All methods are safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// ExecutionsTotal counts top-level plan executions by outcome.
	ExecutionsTotal *prometheus.CounterVec
	// ExecutionDuration is the latency of top-level executions.
	ExecutionDuration *prometheus.HistogramVec
	// RowsScanned is the number of rows a store call returned.
	RowsScanned prometheus.Histogram
	// SecurityInjections counts owner filters injected or rebound, by table.
	SecurityInjections *prometheus.CounterVec
	// SubqueriesTotal counts resolved subqueries by outcome.
	SubqueriesTotal *prometheus.CounterVec
	// ValidationsTotal counts validation results by outcome.
	ValidationsTotal *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planq_executions_total",
				Help: "Total number of plan executions",
			},
			[]string{"outcome"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planq_execution_duration_seconds",
				Help:    "Plan execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		RowsScanned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "planq_rows_scanned",
				Help:    "Rows returned by the backing store per query",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		SecurityInjections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planq_security_injections_total",
				Help: "Owner filters injected or rebound to the caller",
			},
			[]string{"table"},
		),
		SubqueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planq_subqueries_total",
				Help: "Total number of resolved subqueries",
			},
			[]string{"outcome"},
		),
		ValidationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planq_validations_total",
				Help: "Total number of plan validations",
			},
			[]string{"outcome"},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the Prometheus HTTP handler for /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveExecution records one top-level execution.
func (m *Metrics) ObserveExecution(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	outcome = normalize(outcome)
	m.ExecutionsTotal.WithLabelValues(outcome).Inc()
	m.ExecutionDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveRows records the size of one store result.
func (m *Metrics) ObserveRows(n int) {
	if m == nil {
		return
	}
	m.RowsScanned.Observe(float64(n))
}

// SecurityInjected counts one owner filter injection on table.
func (m *Metrics) SecurityInjected(table string) {
	if m == nil {
		return
	}
	m.SecurityInjections.WithLabelValues(table).Inc()
}

// SubqueryResolved counts one subquery resolution.
func (m *Metrics) SubqueryResolved(outcome string) {
	if m == nil {
		return
	}
	m.SubqueriesTotal.WithLabelValues(normalize(outcome)).Inc()
}

// Validated counts one validation.
func (m *Metrics) Validated(outcome string) {
	if m == nil {
		return
	}
	m.ValidationsTotal.WithLabelValues(normalize(outcome)).Inc()
}

func normalize(outcome string) string {
	if outcome == "" {
		return OutcomeOK
	}
	return outcome
}
