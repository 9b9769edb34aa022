package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/auth"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/telemetry-backend-go/internal/websocket"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const greeting = "Hi, this is a system for recording and analyzing data coming from some device!"

// Pinger reports whether the database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services bundles the core services behind the HTTP API
type Services struct {
	Auth     *auth.Service
	Devices  *devices.Service
	Analysis *analysis.Service
}

// Handlers holds all HTTP handlers and their dependencies
type Handlers struct {
	cfg      *config.Config
	log      *logrus.Logger
	db       Pinger
	auth     *auth.Service
	devices  *devices.Service
	analysis *analysis.Service
	wsHub    *websocket.Hub
	metrics  metrics.MetricsCollector
}

// NewHandlers creates a new handlers instance. collector may be nil.
func NewHandlers(cfg *config.Config, db Pinger, services Services, wsHub *websocket.Hub, collector metrics.MetricsCollector, logger *logrus.Logger) *Handlers {
	return &Handlers{
		cfg:      cfg,
		log:      logger,
		db:       db,
		auth:     services.Auth,
		devices:  services.Devices,
		analysis: services.Analysis,
		wsHub:    wsHub,
		metrics:  collector,
	}
}

// Root greets the caller
func (h *Handlers) Root(c *gin.Context) {
	c.String(http.StatusOK, greeting)
}

// NotFound renders unmatched routes
func (h *Handlers) NotFound(c *gin.Context) {
	utils.SendError(c, http.StatusNotFound, "Not found")
}

// MethodNotAllowed renders routes matched with the wrong method
func (h *Handlers) MethodNotAllowed(c *gin.Context) {
	utils.SendError(c, http.StatusMethodNotAllowed, "Method not allowed")
}

// parseID reads a positive int64 path or query value
func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
