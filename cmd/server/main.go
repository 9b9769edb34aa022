package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/frostdev-ops/telemetry-backend-go/internal/api"
	"github.com/frostdev-ops/telemetry-backend-go/internal/api/handlers"
	"github.com/frostdev-ops/telemetry-backend-go/internal/config"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/analysis"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/auth"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/devices"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/metrics"
	"github.com/frostdev-ops/telemetry-backend-go/internal/core/simulator"
	"github.com/frostdev-ops/telemetry-backend-go/internal/database"
	"github.com/frostdev-ops/telemetry-backend-go/internal/discovery"
	"github.com/frostdev-ops/telemetry-backend-go/internal/ingest/mqtt"
	"github.com/frostdev-ops/telemetry-backend-go/internal/websocket"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/logger"
	"github.com/frostdev-ops/telemetry-backend-go/pkg/version"
	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal("Failed to load configuration: ", err)
	}

	// Initialize logger
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log.WithField("version", version.GetFullVersion()).Info("Starting telemetry backend")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database: ", err)
	}
	defer db.Close()

	// Run migrations
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db.DB); err != nil {
			log.Fatal("Failed to run migrations: ", err)
		}
	}

	// Create repositories
	repos := database.NewRepositories(db)

	var collector *metrics.PrometheusCollector
	if cfg.Metrics.Enabled {
		collector = metrics.NewPrometheusCollector(&metrics.MetricsConfig{
			Enabled: true,
			Prefix:  cfg.Metrics.Prefix,
		}, nil)
	}

	// Create WebSocket hub
	hubOpts := []websocket.Option{
		websocket.WithHeartbeatInterval(cfg.WebSocket.HeartbeatInterval),
		websocket.WithSendBuffer(cfg.WebSocket.SendBuffer),
		websocket.WithAllowedOrigins(cfg.Security.AllowedOrigins),
	}
	if collector != nil {
		hubOpts = append(hubOpts, websocket.WithRecorder(collector))
	}
	wsHub := websocket.NewHub(log.Logger, hubOpts...)
	go wsHub.Run(ctx)

	// Initialize core services
	authService := auth.NewService(repos.User, auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: time.Duration(cfg.Auth.TokenExpiry) * time.Second,
		Issuer:      cfg.Auth.Issuer,
	}, log.Logger)

	deviceService := devices.NewService(repos.Device, repos.Sample, log.Logger)
	deviceService.AddObserver(wsHub)

	analysisOpts := []analysis.Option{analysis.WithTimeout(cfg.Analysis.QueryTimeout)}
	if collector != nil {
		deviceService.AddObserver(collector)
		analysisOpts = append(analysisOpts, analysis.WithRecorder(collector))
	}
	analysisService := analysis.NewService(repos.Sample, repos.Device, log.Logger, analysisOpts...)

	// Background ingestion
	var sim *simulator.Scheduler
	if cfg.Simulator.Enabled {
		sim, err = simulator.NewScheduler(deviceService, cfg.Simulator.Schedule, log.Logger)
		if err != nil {
			log.Fatal("Failed to create simulator: ", err)
		}
		if err := sim.Start(); err != nil {
			log.Fatal("Failed to start simulator: ", err)
		}
	}

	mqttDone := make(chan struct{})
	if cfg.MQTT.Enabled {
		sub := mqtt.NewSubscriber(cfg.MQTT, deviceService, log.Logger)
		go func() {
			defer close(mqttDone)
			if err := sub.Run(ctx); err != nil {
				log.WithError(err).Error("MQTT subscriber stopped")
			}
		}()
	} else {
		close(mqttDone)
	}

	// Initialize router
	router := api.NewRouter(ctx, cfg, api.RouterDeps{
		DB: db,
		Services: handlers.Services{
			Auth:     authService,
			Devices:  deviceService,
			Analysis: analysisService,
		},
		Hub:     wsHub,
		Metrics: collector,
		Logger:  log,
	})

	// Websocket upgrades bypass compression
	mux := http.NewServeMux()
	mux.Handle("/ws", router)
	mux.Handle("/", gzhttp.GzipHandler(router))

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting telemetry backend on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var advertiser *discovery.Advertiser
	if cfg.Discovery.Enabled {
		advertiser = discovery.NewAdvertiser(cfg.Discovery, cfg.Server.Port, version.GetVersion(), log.Logger)
		if err := advertiser.Start(); err != nil {
			log.WithError(err).Warn("mDNS advertisement disabled")
			advertiser = nil
		}
	}

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.WithError(err).Error("HTTP server failed")
		stop()
	}

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if advertiser != nil {
		advertiser.Stop()
	}

	if sim != nil {
		if err := sim.Stop(shutdownCtx); err != nil {
			log.WithError(err).Warn("Failed to stop simulator gracefully")
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}

	select {
	case <-mqttDone:
	case <-shutdownCtx.Done():
		log.Warn("Timeout waiting for MQTT subscriber to stop")
	}

	log.FlushPending()
	log.Info("Server exited")
}
