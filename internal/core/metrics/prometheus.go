package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector implements MetricsCollector using Prometheus metrics
type PrometheusCollector struct {
	config   *MetricsConfig
	gatherer prometheus.Gatherer

	// HTTP Metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// WebSocket Metrics
	websocketConnections prometheus.Gauge
	websocketEvents      *prometheus.CounterVec

	// Analysis Metrics
	analysisTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec

	// Ingest Metrics
	samplesIngested *prometheus.CounterVec

	// System Metrics
	systemMemory prometheus.Gauge
}

// NewPrometheusCollector creates a new Prometheus metrics collector. A nil
// registry registers on the process-wide default registry.
func NewPrometheusCollector(config *MetricsConfig, registry *prometheus.Registry) *PrometheusCollector {
	if config == nil {
		config = &MetricsConfig{
			Enabled: true,
			Prefix:  "telemetry",
		}
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if registry != nil {
		registerer = registry
		gatherer = registry
	}
	factory := promauto.With(registerer)
	prefix := config.Prefix

	collector := &PrometheusCollector{
		config:   config,
		gatherer: gatherer,
	}

	collector.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	collector.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	collector.websocketConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	collector.websocketEvents = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_websocket_connection_events_total",
			Help: "WebSocket connects and disconnects",
		},
		[]string{"action"},
	)

	collector.analysisTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_analysis_requests_total",
			Help: "Total number of analyses by scope and outcome",
		},
		[]string{"scope", "outcome"},
	)

	collector.analysisDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    prefix + "_analysis_duration_seconds",
			Help:    "Analysis duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"scope"},
	)

	collector.samplesIngested = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_samples_ingested_total",
			Help: "Total number of stored samples by source",
		},
		[]string{"source"},
	)

	collector.systemMemory = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: prefix + "_system_memory_usage_percent",
			Help: "System memory usage percentage",
		},
	)

	return collector
}

// Handler exposes the collected metrics
func (pc *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(pc.gatherer, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records an HTTP request metric
func (pc *PrometheusCollector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	pc.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	pc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWebSocketConnection records a connect or disconnect
func (pc *PrometheusCollector) RecordWebSocketConnection(action string) {
	pc.websocketEvents.WithLabelValues(action).Inc()
	switch action {
	case "connect":
		pc.websocketConnections.Inc()
	case "disconnect":
		pc.websocketConnections.Dec()
	}
}

// RecordAnalysis implements analysis.Recorder
func (pc *PrometheusCollector) RecordAnalysis(scope string, columns int, duration time.Duration, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, analysis.ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, analysis.ErrStorageUnavailable):
		outcome = "unavailable"
	default:
		outcome = "error"
	}
	pc.analysisTotal.WithLabelValues(scope, outcome).Inc()
	pc.analysisDuration.WithLabelValues(scope).Observe(duration.Seconds())
}

// RecordIngest counts one stored sample
func (pc *PrometheusCollector) RecordIngest(source string) {
	pc.samplesIngested.WithLabelValues(source).Inc()
}

// SampleIngested implements devices.Observer
func (pc *PrometheusCollector) SampleIngested(sample *models.Sample) {
	pc.RecordIngest(sample.Source)
}

// RecordSystemMemory records the host memory usage
func (pc *PrometheusCollector) RecordSystemMemory(percent float64) {
	pc.systemMemory.Set(percent)
}
