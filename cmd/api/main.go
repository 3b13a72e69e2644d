// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

// Gatekeep API server entrypoint.
//
// Startup order matters: configuration, then the backing stores, then
// migrations, then dependency wiring, and only then the listener. A failure
// at any stage aborts the process with a logged reason.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/minhvo/gatekeep/internal/api"
	"github.com/minhvo/gatekeep/internal/platform/config"
	"github.com/minhvo/gatekeep/internal/platform/constants"
	"github.com/minhvo/gatekeep/internal/platform/migration"
	"github.com/minhvo/gatekeep/internal/platform/postgres"
	"github.com/minhvo/gatekeep/internal/platform/redis"
	"github.com/minhvo/gatekeep/internal/platform/upload"
	"github.com/minhvo/gatekeep/internal/users/audit"
	"github.com/minhvo/gatekeep/internal/users/auth"
	"github.com/minhvo/gatekeep/internal/users/profile"
)

func main() {

	// ── 1. Logger ────────────────────────────────────────────────────────
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting",
		slog.String("app", constants.AppName),
		slog.String("version", constants.AppVersion),
	)

	// ── 2. Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load()
	must(logger, "config_load", err)

	if cfg.Debug {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		slog.SetDefault(logger)
	}

	// Root context cancelled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Backing Stores ────────────────────────────────────────────────
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, logger)
	must(logger, "postgres_connect", err)
	defer pool.Close()

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL, logger)
	must(logger, "redis_connect", err)
	defer redisClient.Close()

	// ── 4. Migrations ────────────────────────────────────────────────────
	must(logger, "migrations", migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, logger))

	// ── 5. Dependency Wiring ─────────────────────────────────────────────
	userRepo := auth.NewPostgresUserRepository(pool)
	sessionStore := auth.NewRedisSessionStore(redisClient, cfg.SessionTTL)
	auditLog := audit.NewPostgresLog(pool)
	avatarGate := upload.NewGate(cfg.AvatarDir, constants.AvatarURLPrefix, cfg.AvatarMaxBytes)

	authService := auth.NewService(userRepo, sessionStore, auditLog, logger, cfg.PasswordMinLength)
	profileService := profile.NewService(userRepo, auditLog, auditLog, avatarGate, logger)

	router := api.NewRouter(ctx, api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Redis:       redisClient,
		Sessions:    sessionStore,
		AuthHandler: auth.NewHandler(authService, cfg.SessionTTL, cfg.IsProduction()),
		MeHandler:   profile.NewHandler(profileService, authService),
	})

	// ── 6. HTTP Server ───────────────────────────────────────────────────
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadTimeout:       constants.DefaultReadTimeout,
		WriteTimeout:      constants.DefaultWriteTimeout,
		IdleTimeout:       constants.DefaultIdleTimeout,
		ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// ── 7. Graceful Shutdown ─────────────────────────────────────────────
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			must(logger, "server", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown_signal_received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown_failed", slog.Any("error", err))
			_ = server.Close()
		}
	}

	logger.Info("stopped")
}

// must aborts startup when a critical stage fails.
func must(logger *slog.Logger, stage string, err error) {
	if err != nil {
		logger.Error("startup_failed",
			slog.String("stage", stage),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
