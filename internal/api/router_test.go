package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/auth"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database/models"
	"github.com/frostdev-ops/telemetry-backend-go/internal/websocket"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	repos  *database.Repositories
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(config.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "api.db"),
		MaxConnections: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db.DB))

	log := logger.NewWithOutput(io.Discard, "error", "json")
	repos := database.NewRepositories(db)

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenExpiry = 3600
	cfg.Metrics.Prefix = "api_test"

	collector := metrics.NewPrometheusCollector(&metrics.MetricsConfig{Enabled: true, Prefix: "api_test"}, prometheus.NewRegistry())
	hub := websocket.NewHub(log.Logger)

	deviceService := devices.NewService(repos.Device, repos.Sample, log.Logger)
	deviceService.AddObserver(collector)

	services := handlers.Services{
		Auth: auth.NewService(repos.User, auth.Config{JWTSecret: cfg.Auth.JWTSecret, TokenExpiry: time.Hour}, log.Logger),
		Devices: deviceService,
		Analysis: analysis.NewService(repos.Sample, repos.Device, log.Logger,
			analysis.WithTimeout(5*time.Second), analysis.WithRecorder(collector)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := NewRouter(ctx, cfg, RouterDeps{
		DB:       db,
		Services: services,
		Hub:      hub,
		Metrics:  collector,
		Logger:   log,
	})

	return &testEnv{router: router, repos: repos}
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, into interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if into != nil {
		require.NoError(t, json.Unmarshal(env.Data, into))
	}
	return env
}

func (e *testEnv) login(t *testing.T, login, password string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"login": login, "password": password}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"login": login, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token auth.TokenResponse
	decode(t, w, &token)
	return token.AccessToken
}

func TestRoot(t *testing.T) {
	env := setup(t)
	w := env.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recording and analyzing data")
}

func TestAuthFlow(t *testing.T) {
	env := setup(t)
	token := env.login(t, "alice", "secret1")

	w := env.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"login": "alice", "password": "secret1"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/register", gin.H{"login": "bob", "password": "123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", gin.H{"login": "alice", "password": "wrong1"}, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	form := url.Values{"username": {"alice"}, "password": {"secret1"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	fw := httptest.NewRecorder()
	env.router.ServeHTTP(fw, req)
	require.Equal(t, http.StatusOK, fw.Code, fw.Body.String())
	var formToken auth.TokenResponse
	decode(t, fw, &formToken)
	assert.Equal(t, "bearer", formToken.TokenType)

	w = env.do(t, http.MethodGet, "/api/v1/users/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var me auth.UserInfo
	decode(t, w, &me)
	assert.Equal(t, "alice", me.Login)

	w = env.do(t, http.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDevices(t *testing.T) {
	env := setup(t)
	token := env.login(t, "alice", "secret1")

	w := env.do(t, http.MethodGet, "/api/v1/devices", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No devices found.", decode(t, w, nil).Error)

	w = env.do(t, http.MethodPost, "/api/v1/devices", gin.H{"id": 3}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/devices", gin.H{"id": 3}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var device models.Device
	decode(t, w, &device)
	assert.Equal(t, int64(3), device.ID)
	require.NotNil(t, device.UserID)

	w = env.do(t, http.MethodPost, "/api/v1/devices", gin.H{"id": 3}, token)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/devices", gin.H{"id": 0}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/devices", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		DeviceIDs []int64 `json:"device_ids"`
	}
	decode(t, w, &list)
	assert.Equal(t, []int64{3}, list.DeviceIDs)

	w = env.do(t, http.MethodGet, "/api/v1/devices/3", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/devices/4", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestIngest(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	require.NoError(t, env.repos.Device.Create(ctx, &models.Device{ID: 1}))

	w := env.do(t, http.MethodPost, "/api/v1/devices/1/samples", gin.H{"x": 1.5, "y": 2, "z": -3}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var sample models.Sample
	decode(t, w, &sample)
	assert.Equal(t, 1.5, sample.X)
	assert.Equal(t, -3.0, sample.Z)
	assert.False(t, sample.RecordedAt.IsZero())

	w = env.do(t, http.MethodPost, "/api/v1/devices/1/samples", nil, "")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/devices/1/new_data", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/devices/1/samples", gin.H{"x": 1}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/devices/9/new_data", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Device with id = 9 not found!", decode(t, w, nil).Error)

	w = env.do(t, http.MethodGet, "/api/v1/devices/1/samples?limit=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var recent struct {
		Samples []models.Sample `json:"samples"`
	}
	decode(t, w, &recent)
	assert.Len(t, recent.Samples, 2)

	w = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Contains(t, w.Body.String(), `api_test_samples_ingested_total{source="api"} 3`)
}

func TestAnalysis(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	w := env.do(t, http.MethodGet, "/api/v1/analysis", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty map[string]string
	decode(t, w, &empty)
	assert.Equal(t, "No data yet.", empty["message"])

	require.NoError(t, env.repos.Device.Create(ctx, &models.Device{ID: 1}))
	require.NoError(t, env.repos.Device.Create(ctx, &models.Device{ID: 2}))
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, x := range []float64{1, 2, 3, 4} {
		require.NoError(t, env.repos.Sample.Append(ctx, &models.Sample{
			DeviceID: 1, X: x, Y: -x, Z: 0, RecordedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, env.repos.Sample.Append(ctx, &models.Sample{DeviceID: 2, X: 100, RecordedAt: t0}))

	type report map[string]map[string]struct {
		BeginDate time.Time `json:"begin_date"`
		EndDate   time.Time `json:"end_date"`
		MinValue  *float64  `json:"min_value"`
		MaxValue  *float64  `json:"max_value"`
		Count     uint64    `json:"count"`
		Sum       *float64  `json:"sum"`
		Median    *float64  `json:"median"`
	}

	w = env.do(t, http.MethodGet, "/api/v1/analysis?device_id=1&column=x", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var single report
	decode(t, w, &single)
	x := single["1"]["x"]
	assert.Equal(t, uint64(4), x.Count)
	assert.Equal(t, 1.0, *x.MinValue)
	assert.Equal(t, 4.0, *x.MaxValue)
	assert.Equal(t, 10.0, *x.Sum)
	assert.Equal(t, 2.5, *x.Median)
	assert.True(t, t0.Equal(x.BeginDate))
	assert.True(t, t0.Add(3*time.Minute).Equal(x.EndDate))
	assert.NotContains(t, single["1"], "y")

	w = env.do(t, http.MethodGet, "/device_data_analysis?column=x&begin=2024-01-01T10:00:00&end=2024-01-01T10:01:00", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var all report
	decode(t, w, &all)
	assert.Equal(t, uint64(3), all["all"]["x"].Count)
	assert.Equal(t, 100.0, *all["all"]["x"].MaxValue)

	w = env.do(t, http.MethodGet, "/api/v1/analysis?device_id=1&column=q", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/analysis?device_id=abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/analysis?device_id=1&begin=yesterday", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setup(t)

	w := env.do(t, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]interface{}
	decode(t, w, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(0), health["websocket_clients"])

	w = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "api_test_http_requests_total")
}

func TestNotFound(t *testing.T) {
	env := setup(t)
	w := env.do(t, http.MethodGet, "/api/v1/devicez", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
