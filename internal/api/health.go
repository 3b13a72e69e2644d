// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	rediscli "github.com/redis/go-redis/v9"

	"github.com/minhvo/gatekeep/internal/platform/constants"
	"github.com/minhvo/gatekeep/internal/platform/postgres"
	"github.com/minhvo/gatekeep/internal/platform/redis"
	"github.com/minhvo/gatekeep/internal/platform/respond"
)

// # Health Probes

// healthStatus is the payload for both probes.
type healthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// handleHealth is the liveness probe. It answers as long as the process can
// serve HTTP; it deliberately touches no dependency.
func handleHealth(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, healthStatus{
		Status:  "ok",
		Version: constants.AppVersion,
	})
}

// handleReady is the readiness probe. It pings both backing stores and
// reports per-dependency status so operators can tell which one is down.
func handleReady(pool *pgxpool.Pool, client *rediscli.Client) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		checks := map[string]string{
			"postgres": "ok",
			"redis":    "ok",
		}
		healthy := true

		if err := postgres.Ping(request.Context(), pool); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
		if err := redis.Ping(request.Context(), client); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}

		status := healthStatus{
			Status:  "ready",
			Version: constants.AppVersion,
			Checks:  checks,
		}
		if !healthy {
			status.Status = "degraded"
			respond.JSON(writer, http.StatusServiceUnavailable, status)
			return
		}
		respond.OK(writer, status)
	}
}
