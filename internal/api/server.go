// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

// Package api assembles the HTTP surface of the Gatekeep server: the global
// middleware chain, route mounting, and health probes.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/minhvo/gatekeep/internal/platform/config"
	"github.com/minhvo/gatekeep/internal/platform/constants"
	"github.com/minhvo/gatekeep/internal/platform/middleware"
	"github.com/minhvo/gatekeep/internal/users/auth"
	"github.com/minhvo/gatekeep/internal/users/profile"
)

// # Server Assembly

// Dependencies bundles everything the router needs.
type Dependencies struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Sessions    middleware.SessionResolver
	AuthHandler *auth.Handler
	MeHandler   *profile.Handler
}

/*
NewRouter builds the full HTTP router.

Description: Installs the global middleware chain in a deliberate order
(request identity first, then logging, limits, recovery, authentication),
mounts the versioned API subtrees, and wires the health probes and the static
avatar file server.

Parameters:
  - ctx: context.Context (owns the rate limiter's cleanup goroutine)
  - deps: Dependencies

Returns:
  - chi.Router: Ready to serve
*/
func NewRouter(ctx context.Context, deps Dependencies) chi.Router {
	router := chi.NewRouter()

	// ── Global Middleware Chain ──────────────────────────────────────────
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(deps.Logger))
	router.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	router.Use(middleware.RateLimit(ctx))
	router.Use(middleware.PanicRecovery(deps.Logger))
	router.Use(middleware.Authenticate(deps.Sessions))
	router.Use(middleware.CORS(deps.Config))
	router.Use(chimw.CleanPath)

	// ── Health Probes ────────────────────────────────────────────────────
	router.Get("/health", handleHealth)
	router.Get("/ready", handleReady(deps.Pool, deps.Redis))

	// ── API Routes (v1) ──────────────────────────────────────────────────
	router.Route("/api/v1", func(v1 chi.Router) {
		v1.Mount("/auth", deps.AuthHandler.Routes())
		v1.Mount("/me", deps.MeHandler.Routes())
	})

	// ── Static Avatar Serving ────────────────────────────────────────────
	// Avatars carry server-generated names, so serving the directory
	// directly exposes nothing a client did not already receive as a URL.
	fileServer := http.StripPrefix(
		constants.AvatarURLPrefix,
		http.FileServer(http.Dir(deps.Config.AvatarDir)),
	)
	router.Get(constants.AvatarURLPrefix+"/*", fileServer.ServeHTTP)

	return router
}
