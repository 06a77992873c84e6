package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amy-weather/internal/config"
	"amy-weather/internal/handlers"
	"amy-weather/internal/repository"
	"amy-weather/internal/services"
	"amy-weather/pkg/database"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("amy-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting AMY weather API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("amy_weather", prometheus.DefaultRegisterer)

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.PostgresConfig(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository, services and handlers
	repo := repository.NewAMYRepository(db, logger, metricsCollector)
	queryService := services.NewQueryService(repo, logger, metricsCollector)
	amyHandler := handlers.NewAMYHandler(queryService, logger, metricsCollector)

	// Optional scheduled completeness screen of the ISD-Lite tree
	if cfg.Analysis.Schedule != "" {
		analysisService, err := services.NewAnalysisService(repo, cfg.Pipeline.Thresholds, cfg.Analysis.BatchSize, logger, metricsCollector)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Invalid analysis settings", logging.Fields{}, err)
		}
		scheduler, err := services.NewAnalysisScheduler(analysisService, cfg.Paths.ISDDir, cfg.Analysis.Schedule, logger)
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Invalid analysis schedule", logging.Fields{}, err)
		}
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start analysis scheduler", logging.Fields{}, err)
		}
		defer scheduler.Stop()
	}

	// Setup router
	router := mux.NewRouter()
	amyHandler.RegisterRoutes(router)
	router.HandleFunc("/api/docs", handlers.SwaggerUI("/api/docs/openapi.json")).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", handlers.OpenAPISpec).Methods("GET")

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
