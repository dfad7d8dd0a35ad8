// Package metrics provides Prometheus metrics for the PCOS prediction service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exposed by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	latencyBuckets   []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scorer metrics
	scorerInvocations *prometheus.CounterVec
	scorerLatency     *prometheus.HistogramVec
	scorerInFlight    prometheus.Gauge

	// Request gating
	validationRejections *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record* helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pcos",
		subsystem:        "predictor",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		latencyBuckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.scorerInvocations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scorer_invocations_total",
		Help:        "Scorer process invocations by terminal outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.scorerLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scorer_latency_milliseconds",
		Help:        "Wall time of one scorer process from start to exit",
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.scorerInFlight = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "scorer_in_flight",
		Help:        "Scorer processes currently running",
		ConstLabels: m.constLabels,
	})

	m.validationRejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "validation_rejections_total",
		Help:        "Requests rejected before inference, by reason",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_type_total",
		Help:        "Total number of errors by type",
		ConstLabels: m.constLabels,
	}, []string{"error_type", "severity"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_endpoint_total",
		Help:        "Total number of errors by endpoint",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "Heap bytes allocated",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: m.constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordScorerInvocation counts one finished invocation and its latency.
func (m *Manager) RecordScorerInvocation(outcome string, latencyMs float64) {
	m.scorerInvocations.WithLabelValues(outcome).Inc()
	m.scorerLatency.WithLabelValues(outcome).Observe(latencyMs)
}

// ScorerStarted marks a scorer process as running.
func (m *Manager) ScorerStarted() { m.scorerInFlight.Inc() }

// ScorerFinished marks a scorer process as gone.
func (m *Manager) ScorerFinished() { m.scorerInFlight.Dec() }

// RecordScorerInvocation records on the global manager.
func RecordScorerInvocation(outcome string, latencyMs float64) {
	globalManager.RecordScorerInvocation(outcome, latencyMs)
}

// ScorerStarted increments the global in-flight gauge.
func ScorerStarted() { globalManager.ScorerStarted() }

// ScorerFinished decrements the global in-flight gauge.
func ScorerFinished() { globalManager.ScorerFinished() }

// RecordValidationRejection counts a request rejected before inference.
func RecordValidationRejection(reason string) {
	globalManager.validationRejections.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
