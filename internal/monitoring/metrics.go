// internal/monitoring/metrics.go
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsManager manages Prometheus metrics for the receipt extraction service
type MetricsManager struct {
	registry *prometheus.Registry

	// Extraction metrics
	extractionsTotal   *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	fieldSources       *prometheus.CounterVec

	// Portal fetch metrics
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	openCircuits  prometheus.Gauge

	// HTTP API metrics
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	// Audit metrics
	auditRecords *prometheus.CounterVec

	namespace string
}

// MetricsConfig configuration for metrics
type MetricsConfig struct {
	Namespace       string `json:"namespace"`
	EnableGoMetrics bool   `json:"enable_go_metrics"`
}

// NewMetricsManager creates a metrics manager with its own registry, so
// several managers (one per test, for instance) never collide.
func NewMetricsManager(config MetricsConfig) *MetricsManager {
	if config.Namespace == "" {
		config.Namespace = "receiptscrapexter"
	}

	mm := &MetricsManager{
		registry:  prometheus.NewRegistry(),
		namespace: config.Namespace,
	}
	if config.EnableGoMetrics {
		mm.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	mm.initializeMetrics()
	return mm
}

// initializeMetrics initializes all Prometheus metrics
func (mm *MetricsManager) initializeMetrics() {
	factory := promauto.With(mm.registry)

	mm.extractionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "extraction",
			Name:      "total",
			Help:      "Receipt extractions by outcome (complete, partial, identifier_only)",
		},
		[]string{"outcome"},
	)

	mm.extractionDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "extraction",
			Name:      "duration_seconds",
			Help:      "End-to-end extraction duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	mm.fieldSources = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "extraction",
			Name:      "field_source_total",
			Help:      "Winning confidence tier per extracted field",
		},
		[]string{"field", "tier"},
	)

	mm.fetchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Portal fetches by outcome (ok, error, timeout, http_error, circuit_open, skipped)",
		},
		[]string{"outcome"},
	)

	mm.fetchDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "fetch",
			Name:      "duration_seconds",
			Help:      "Portal fetch duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"outcome"},
	)

	mm.openCircuits = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: "fetch",
			Name:      "open_circuits",
			Help:      "Number of portal hosts whose circuit breaker is open",
		},
	)

	mm.requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by route, method and status code",
		},
		[]string{"route", "method", "status_code"},
	)

	mm.requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	mm.requestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: mm.namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "API requests currently being served",
		},
	)

	mm.auditRecords = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: mm.namespace,
			Subsystem: "audit",
			Name:      "records_total",
			Help:      "Audit records written by sink driver and status",
		},
		[]string{"driver", "status"},
	)
}

// Extraction metrics
func (mm *MetricsManager) RecordExtraction(outcome string, duration time.Duration) {
	mm.extractionsTotal.WithLabelValues(outcome).Inc()
	mm.extractionDuration.Observe(duration.Seconds())
}

func (mm *MetricsManager) RecordFieldSource(field, tier string) {
	mm.fieldSources.WithLabelValues(field, tier).Inc()
}

// Fetch metrics
func (mm *MetricsManager) RecordFetch(outcome string, duration time.Duration) {
	mm.fetchesTotal.WithLabelValues(outcome).Inc()
	if outcome != "skipped" && outcome != "circuit_open" {
		mm.fetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

func (mm *MetricsManager) SetOpenCircuits(count int) {
	mm.openCircuits.Set(float64(count))
}

// HTTP API metrics
func (mm *MetricsManager) RecordRequest(route, method string, statusCode int, duration time.Duration) {
	mm.requestsTotal.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	mm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (mm *MetricsManager) IncRequestsInFlight() {
	mm.requestsInFlight.Inc()
}

func (mm *MetricsManager) DecRequestsInFlight() {
	mm.requestsInFlight.Dec()
}

// Audit metrics
func (mm *MetricsManager) RecordAudit(driver string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	mm.auditRecords.WithLabelValues(driver, status).Inc()
}

// Registry exposes the underlying registry, mainly for tests
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// MetricsHandler returns an HTTP handler for metrics endpoint
func (mm *MetricsManager) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{})
}
