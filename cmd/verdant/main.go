// Package main is the entry point for the Verdant AI service.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"verdant/internal/ai"
	"verdant/internal/cache"
	"verdant/internal/config"
	"verdant/internal/database"
	"verdant/internal/handlers"
	"verdant/internal/middleware"
	"verdant/internal/orchestrator"
	"verdant/internal/prompt"
	"verdant/internal/router"
	"verdant/internal/store"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger: JSON in production, text otherwise.
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Valkey is optional. It backs the shared rate limiter and the
	// embedding cache; without it both fall back to in-process behavior.
	var (
		limiter middleware.Limiter
		vectors orchestrator.VectorCache
	)
	if cfg.UseValkey() {
		valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
		if err != nil {
			slog.Warn("valkey unavailable, using in-process rate limiter", "error", err)
		} else {
			defer valkeyClient.Close()
			if cfg.RateLimitPerMinute > 0 {
				limiter = middleware.NewValkeyLimiter(valkeyClient, cfg.RateLimitPerMinute, time.Minute)
			}
			vectors = cache.NewEmbeddingCache(valkeyClient, cache.DefaultEmbeddingTTL)
		}
	}
	if limiter == nil && cfg.RateLimitPerMinute > 0 {
		rl := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		defer rl.Stop()
		limiter = rl
	}

	// Model backends. Only backends with an API key are registered.
	registry := ai.NewRegistry(map[string]ai.ProviderConfig{
		ai.OpenAI: {APIKey: cfg.OpenAIKey, Model: cfg.OpenAIModel, BaseURL: cfg.OpenAIBaseURL},
		ai.Claude: {APIKey: cfg.ClaudeKey, Model: cfg.ClaudeModel, BaseURL: cfg.ClaudeBaseURL},
	})
	slog.Info("ai backends initialized", "available", registry.Available())
	if len(registry.Available()) == 0 {
		slog.Warn("no ai backends configured, generation endpoints will fail")
	}

	catalog, err := prompt.Default()
	if err != nil {
		slog.Error("failed to load prompt templates", "error", err)
		os.Exit(1)
	}

	orch := orchestrator.New(catalog, registry, store.NewPostgres(db), orchestrator.Options{
		Models: map[string]string{
			ai.OpenAI: cfg.OpenAIModel,
			ai.Claude: cfg.ClaudeModel,
		},
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
		Vectors:             vectors,
		Usage:               store.NewUsageLogStore(db),
	})

	r := router.New(handlers.NewAPI(orch), router.Options{
		CORSOrigin: cfg.CORSOrigin,
		Limiter:    limiter,
	})

	// WriteTimeout must accommodate endpoints that wait on model replies,
	// including batch scoring which calls the model once per lead.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: handlers.MinWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
