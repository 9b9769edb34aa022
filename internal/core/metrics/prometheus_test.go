package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector() *PrometheusCollector {
	return NewPrometheusCollector(&MetricsConfig{Enabled: true, Prefix: "test"}, prometheus.NewRegistry())
}

func TestRecordAnalysis_Outcomes(t *testing.T) {
	c := newTestCollector()

	c.RecordAnalysis("device", 3, time.Millisecond, nil)
	c.RecordAnalysis("device", 3, time.Millisecond, fmt.Errorf("%w: x", analysis.ErrTimeout))
	c.RecordAnalysis("user", 1, time.Millisecond, fmt.Errorf("%w: x", analysis.ErrStorageUnavailable))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysisTotal.WithLabelValues("device", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysisTotal.WithLabelValues("device", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysisTotal.WithLabelValues("user", "unavailable")))
}

func TestSampleIngested(t *testing.T) {
	c := newTestCollector()
	c.SampleIngested(&models.Sample{Source: models.SourceMQTT})
	c.SampleIngested(&models.Sample{Source: models.SourceMQTT})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.samplesIngested.WithLabelValues("mqtt")))
}

func TestWebSocketGauge(t *testing.T) {
	c := newTestCollector()
	c.RecordWebSocketConnection("connect")
	c.RecordWebSocketConnection("connect")
	c.RecordWebSocketConnection("disconnect")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.websocketConnections))
}

func TestHandler(t *testing.T) {
	c := newTestCollector()
	c.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",path="/health",status="200"} 1`)
}
