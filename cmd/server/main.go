package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rohanmehra24/unify-segment/internal/api"
	"github.com/rohanmehra24/unify-segment/internal/config"
	"github.com/rohanmehra24/unify-segment/internal/ingest"
	"github.com/rohanmehra24/unify-segment/internal/metrics"
	"github.com/rohanmehra24/unify-segment/internal/segment"
	"github.com/rohanmehra24/unify-segment/internal/store"
	"github.com/rohanmehra24/unify-segment/internal/unify"
	ws "github.com/rohanmehra24/unify-segment/internal/websocket"
	"github.com/rohanmehra24/unify-segment/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize PostgreSQL
	ctx := context.Background()
	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	// Run database migrations
	if err := pgStore.RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	// Initialize Redis
	redisClient, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Core pipeline and audience engine
	pipeline := unify.NewService(pgStore, m, logger)
	engine := segment.NewEngine(pgStore, logger)
	queue := segment.NewQueue(redisClient, logger)
	limiter := ingest.NewRateLimiter(redisClient, logger)

	// WebSocket activity hub
	hub := ws.NewHub(logger)
	go hub.Run()

	// Rebuild workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	runner := worker.NewRunner(engine, hub, m, logger)
	pool := worker.NewPool(cfg.NumWorkers, runner, logger)
	pool.Start(workerCtx)

	dispatcher := worker.NewDispatcher(queue, pool, m, logger)
	go dispatcher.Start(workerCtx)

	// Setup router
	router := api.NewRouter(api.Deps{
		Pipeline:        pipeline,
		Profiles:        pgStore,
		Audiences:       engine,
		Queue:           queue,
		Hub:             hub,
		Limiter:         limiter,
		Logger:          logger,
		IngestRateLimit: cfg.IngestRateLimit,
		Gatherer:        registry,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// The dispatcher must fully stop before the pool closes its job channel;
	// an in-flight poll may still be submitting.
	stopWorkers()
	dispatcher.Wait()
	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
