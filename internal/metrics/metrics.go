package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ExtractionsTotal    *prometheus.CounterVec
	ExtractionDuration  *prometheus.HistogramVec
	CyclesTotal         *prometheus.CounterVec
	RecordsPersisted    *prometheus.CounterVec
}

// New registers every collector on reg. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ExtractionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardscan_extractions_total",
				Help: "Extraction attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		ExtractionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cardscan_extraction_duration_seconds",
				Help:    "Latency of vision provider calls.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider"},
		),
		CyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardscan_capture_cycles_total",
				Help: "Capture cycles by final outcome.",
			},
			[]string{"outcome"},
		),
		RecordsPersisted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardscan_records_persisted_total",
				Help: "Record store appends by result.",
			},
			[]string{"result"},
		),
	}
}

// ObserveExtraction records one provider call.
func (m *Metrics) ObserveExtraction(provider, outcome string, elapsed time.Duration) {
	m.ExtractionsTotal.WithLabelValues(provider, outcome).Inc()
	m.ExtractionDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveCycle counts a finished capture cycle.
func (m *Metrics) ObserveCycle(outcome string) {
	m.CyclesTotal.WithLabelValues(outcome).Inc()
}

// ObservePersistence counts a record append.
func (m *Metrics) ObservePersistence(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.RecordsPersisted.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
