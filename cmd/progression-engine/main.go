package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/buildcamp/progression-engine/internal/api"
	"github.com/buildcamp/progression-engine/internal/cache"
	"github.com/buildcamp/progression-engine/internal/cleanup"
	"github.com/buildcamp/progression-engine/internal/config"
	"github.com/buildcamp/progression-engine/internal/policy"
	"github.com/buildcamp/progression-engine/internal/progression"
	"github.com/buildcamp/progression-engine/internal/stats"
	"github.com/buildcamp/progression-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional, environment variables win
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting progression-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
		MaxLifetime:  cfg.Database.MaxLifetime,
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Recommendation cache is optional: without Redis the engine just
	// recomputes rankings on every request
	var recCache *cache.RecommendationCache
	if cfg.Redis.Address != "" {
		recCache, err = cache.NewRecommendationCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.CacheTTL)
		if err != nil {
			slog.Warn("recommendation cache unavailable", "error", err)
			recCache = nil
		}
	}

	// Load the decision policy
	pol, err := policy.Load(cfg.Policy.Path)
	if err != nil {
		slog.Error("failed to load policy", "error", err)
		os.Exit(1)
	}

	// Initialize the progression engine
	engine := progression.New(repo, pol, recCache)

	// Reporting connection for dashboard aggregates
	reporter, err := stats.NewReporter(cfg.Database.DSN)
	if err != nil {
		slog.Warn("stats reporter unavailable", "error", err)
		reporter = nil
	}

	// Initialize audit pruner
	pruner := cleanup.NewPruner(repo, cfg.Cleanup.Interval, cfg.Cleanup.Retention)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start audit pruner
	pruner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, engine, repo, reporter)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if recCache != nil {
		if err := recCache.Close(); err != nil {
			slog.Error("cache close error", "error", err)
		}
	}
	if reporter != nil {
		if err := reporter.Close(); err != nil {
			slog.Error("reporter close error", "error", err)
		}
	}
	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("progression-engine stopped")
}
