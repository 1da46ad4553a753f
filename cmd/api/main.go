package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/mjashworth/priceframe/internal/adapters/extractdir"
	"github.com/mjashworth/priceframe/internal/adapters/http"
	"github.com/mjashworth/priceframe/internal/adapters/overpass"
	"github.com/mjashworth/priceframe/internal/adapters/postgres"
	"github.com/mjashworth/priceframe/internal/core/usecases"
	"github.com/mjashworth/priceframe/internal/pkg/config"
	"github.com/mjashworth/priceframe/internal/pkg/logging"
	"github.com/mjashworth/priceframe/internal/pkg/metrics"
	"github.com/mjashworth/priceframe/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("priceframe-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Extract store
	extracts, err := extractdir.New(cfg.Extracts.Dir)
	if err != nil {
		log.Fatalf("extract store: %v", err)
	}

	// Collaborators
	store := postgres.NewTransactionRepo(db)
	pois := overpass.New(cfg.Overpass.Endpoint, time.Duration(cfg.Overpass.Timeout)*time.Second)

	// Use cases
	fetcher := usecases.NewFetchService(store, extracts)
	features := usecases.NewFeatureService(fetcher, pois)
	predictions := usecases.NewPredictionService(features)

	deps := &http.Dependencies{
		Fetcher:     fetcher,
		Features:    features,
		Predictions: predictions,
		DB:          db,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Priceframe API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Publish DB pool gauges
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			}
		}
	}()

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
