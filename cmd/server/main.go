// Package main is the entry point for the GuardianVault server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gunjansamrit/GuardianVault01/internal/accounts"
	"github.com/gunjansamrit/GuardianVault01/internal/config"
	"github.com/gunjansamrit/GuardianVault01/internal/consent"
	"github.com/gunjansamrit/GuardianVault01/internal/database"
	"github.com/gunjansamrit/GuardianVault01/internal/handlers"
	"github.com/gunjansamrit/GuardianVault01/internal/items"
	"github.com/gunjansamrit/GuardianVault01/internal/keyring"
	"github.com/gunjansamrit/GuardianVault01/internal/middleware"
	"github.com/gunjansamrit/GuardianVault01/internal/store"
	"github.com/gunjansamrit/GuardianVault01/internal/token"
	"github.com/gunjansamrit/GuardianVault01/internal/vault"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.Security.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting GuardianVault",
		"version", version,
		"env", cfg.Security.Environment,
	)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL
	logger.Info("connecting to PostgreSQL")
	dbPool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbPool.Close()
	logger.Info("connected to PostgreSQL")

	st := store.New(dbPool)
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Open the item vault
	itemVault, err := vault.Open(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	defer func() {
		if err := itemVault.Close(); err != nil {
			logger.Error("failed to close vault", "error", err)
		}
	}()

	keys, err := keyring.New(cfg.Security.MasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize keyring: %w", err)
	}

	// Connect to Redis for rate limiting. In development the server runs
	// without it.
	var limiter *middleware.RateLimiter
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(opt)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		logger.Warn("Redis unavailable, rate limiting disabled", "error", err)
	} else {
		limiter = middleware.NewRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		logger.Info("connected to Redis")
	}

	tokens := token.NewManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)

	// Initialize services. Expiry is detected lazily on the access path, so
	// there is no background sweep to start.
	engine := consent.New(st, st, st, st, itemVault, keys)
	accountService := accounts.NewService(st, keys, tokens)
	itemService := items.NewService(st, itemVault, keys)

	deps := &handlers.Dependencies{
		Config:   cfg,
		Logger:   logger,
		Engine:   engine,
		Accounts: accountService,
		Items:    itemService,
		Tokens:   tokens,
		Limiter:  limiter,
	}

	router := handlers.NewRouter(deps)

	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server listening",
			"addr", cfg.ServerAddr(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
