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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rusle-platform/internal/cache"
	"rusle-platform/internal/config"
	"rusle-platform/internal/engine"
	"rusle-platform/internal/handlers"
	"rusle-platform/internal/repository"
	"rusle-platform/internal/rusle"
	"rusle-platform/internal/services"
	"rusle-platform/pkg/database"
	"rusle-platform/pkg/logging"
	"rusle-platform/pkg/metrics"
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

	// Initialize logger
	logLevel := logging.InfoLevel
	if cfg.Logging.Level == "debug" {
		logLevel = logging.DebugLevel
	}

	logger := logging.NewStructuredLogger("rusle-api", "1.0.0", logLevel)

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting RUSLE platform API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"engine_url":  cfg.Engine.BaseURL,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("rusle_platform")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Std(),
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime.Std(),
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize raster engine session
	session := engine.NewSession(engine.Config{
		BaseURL: cfg.Engine.BaseURL,
		Project: cfg.Engine.Project,
		Token:   cfg.Engine.Token,
		Timeout: cfg.Engine.Timeout.Std(),
	}, logger, metricsCollector)

	if err := session.Initialize(ctx); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize raster engine session", logging.Fields{
			"engine_url": cfg.Engine.BaseURL,
			"project":    cfg.Engine.Project,
		}, err)
	}

	// Initialize repository and result store
	jobRepo := repository.NewJobRepository(db, logger, metricsCollector)
	resultStore := cache.NewMemoryStore()

	// Initialize calculator
	calculator := rusle.NewCalculator(
		session,
		logger,
		metricsCollector,
		cfg.Processing.StatsMaxPixels,
		cfg.Processing.ExportMaxPixels,
	)

	// Initialize services
	processService := services.NewProcessService(session, calculator, resultStore, jobRepo, cfg.Processing, logger, metricsCollector)
	statsService := services.NewStatisticsService(calculator, resultStore, logger)
	exportService := services.NewExportService(calculator, resultStore, jobRepo, cfg.Processing, logger)

	// Initialize handlers
	processHandler := handlers.NewProcessHandler(processService, statsService, exportService, jobRepo, logger, metricsCollector)
	visualizeHandler := handlers.NewVisualizeHandler(processService, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()

	// Register routes
	processHandler.RegisterRoutes(router)
	visualizeHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
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
