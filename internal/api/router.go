package api

import (
	"context"

	"github.com/frostdev-ops/telemetry-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/telemetry-backend-go/internal/api/middleware"
	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/telemetry-backend-go/internal/websocket"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

// RouterDeps are the collaborators the router wires into handlers
type RouterDeps struct {
	DB       handlers.Pinger
	Services handlers.Services
	Hub      *websocket.Hub
	Metrics  *metrics.PrometheusCollector
	Logger   *logger.BatchLogger
}

// NewRouter creates and configures the main HTTP router. ctx bounds the
// lifetime of background middleware state.
func NewRouter(ctx context.Context, cfg *config.Config, deps RouterDeps) *gin.Engine {
	// Set gin mode based on config
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true

	// Global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(deps.Logger.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.CORSMiddleware(cfg.Security.AllowedOrigins))

	var collector metrics.MetricsCollector
	if deps.Metrics != nil {
		collector = deps.Metrics
		router.Use(middleware.MetricsMiddleware(deps.Metrics))
	}

	if cfg.Security.RateLimit.Enabled {
		rateLimiter := middleware.NewRateLimiter(ctx, float64(cfg.Security.RateLimit.RequestsPerSecond), cfg.Security.RateLimit.Burst)
		router.Use(rateLimiter.RateLimitMiddleware())
	}

	router.Use(middleware.ErrorResponseMiddleware(deps.Logger.Logger))

	h := handlers.NewHandlers(cfg, deps.DB, deps.Services, deps.Hub, collector, deps.Logger.Logger)

	router.NoRoute(h.NotFound)
	router.NoMethod(h.MethodNotAllowed)

	// Public routes
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// WebSocket endpoint (no auth required for connection)
	router.GET("/ws", h.WebSocketHandler())

	// Legacy unversioned paths
	router.GET("/device_data_analysis", h.Analyze)

	requireAuth := middleware.AuthMiddleware(cfg.Auth.JWTSecret)

	// API v1 routes
	api := router.Group("/api/v1")
	{
		// Authentication routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
		}

		api.GET("/users/me", requireAuth, h.Me)

		devices := api.Group("/devices")
		{
			devices.POST("", requireAuth, h.CreateDevice)
			devices.GET("", h.ListDevices)
			devices.GET("/:id", h.GetDevice)
			devices.GET("/:id/samples", h.RecentSamples)
			devices.POST("/:id/samples", h.IngestSample)
			devices.GET("/:id/new_data", h.SimulateSample)
		}

		api.GET("/analysis", h.Analyze)

		api.GET("/websocket/stats", requireAuth, h.WebSocketStats)
	}

	return router
}
