// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, Upload Gate) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Gatekeep API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Session Store (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// SessionTTL is how long a login session stays valid without re-authentication.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// PasswordMinLength is the minimum accepted password length.
	// Values below the hard floor of 6 are rejected at startup.
	PasswordMinLength int `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`

	// Avatar storage
	AvatarDir      string `env:"AVATAR_DIR"       envDefault:"./data/uploads/avatars"`
	AvatarMaxBytes int64  `env:"AVATAR_MAX_BYTES" envDefault:"2097152"`

	// Cross-Origin Resource Sharing. Comma-separated exact origins allowed
	// in addition to the production domain, e.g. staging frontends.
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// Weakening the password policy below 6 characters is never allowed,
	// regardless of what the environment says.
	if cfg.PasswordMinLength < 6 {
		return nil, fmt.Errorf("config: PASSWORD_MIN_LENGTH must be at least 6, got %d", cfg.PasswordMinLength)
	}

	if cfg.AvatarMaxBytes <= 0 {
		return nil, fmt.Errorf("config: AVATAR_MAX_BYTES must be positive, got %d", cfg.AvatarMaxBytes)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the extra origins permitted by CORS, parsed from
// the comma-separated EXTRA_ORIGINS value. Blank entries are dropped.
func (c *Config) AllowedOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
