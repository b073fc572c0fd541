// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package config loads and validates EventLens configuration.
//
// Configuration is loaded via Koanf v2 with layered sources, highest
// priority last: built-in defaults, optional YAML config file, environment
// variables. See koanf.go for the environment variable mapping table.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the EventLens server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Tracking TrackingConfig `koanf:"tracking"`
	Security SecurityConfig `koanf:"security"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file, or ":memory:" for tests.
	Path string `koanf:"path"`

	// MaxMemory is the DuckDB memory limit, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// TrackingConfig holds session-tracking behavior settings.
type TrackingConfig struct {
	// MoveSampleRate is the fraction of cursor "move" samples persisted.
	// Clicks, scrolls, hovers and page visits are always persisted.
	MoveSampleRate float64 `koanf:"move_sample_rate"`

	// CursorBufferCap caps the raw cursor sample buffer kept per session.
	CursorBufferCap int `koanf:"cursor_buffer_cap"`

	// InactivityTimeout is how long a connection may stay silent before the
	// reconciler treats it as disconnected.
	InactivityTimeout time.Duration `koanf:"inactivity_timeout"`

	// SweepInterval is how often the reconciler scans for stale state.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// RetentionDays is how long closed session logs are kept before purge.
	RetentionDays int `koanf:"retention_days"`

	// WSMessagesPerSecond limits inbound messages per WebSocket connection.
	WSMessagesPerSecond float64 `koanf:"ws_messages_per_second"`

	// WSMessageBurst is the token bucket burst for the inbound limiter.
	WSMessageBurst int `koanf:"ws_message_burst"`
}

// SecurityConfig holds the transport-level protections that remain in scope
// with authentication handled by an external collaborator.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// APIConfig holds API behavior settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Tracking.MoveSampleRate < 0 || c.Tracking.MoveSampleRate > 1 {
		return fmt.Errorf("tracking.move_sample_rate must be in [0,1], got %g", c.Tracking.MoveSampleRate)
	}
	if c.Tracking.CursorBufferCap <= 0 {
		return fmt.Errorf("tracking.cursor_buffer_cap must be positive, got %d", c.Tracking.CursorBufferCap)
	}
	if c.Tracking.InactivityTimeout <= 0 {
		return fmt.Errorf("tracking.inactivity_timeout must be positive, got %s", c.Tracking.InactivityTimeout)
	}
	if c.Tracking.SweepInterval <= 0 {
		return fmt.Errorf("tracking.sweep_interval must be positive, got %s", c.Tracking.SweepInterval)
	}
	if c.Tracking.RetentionDays <= 0 {
		return fmt.Errorf("tracking.retention_days must be positive, got %d", c.Tracking.RetentionDays)
	}
	if c.Tracking.WSMessagesPerSecond <= 0 {
		return fmt.Errorf("tracking.ws_messages_per_second must be positive, got %g", c.Tracking.WSMessagesPerSecond)
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size (%d) must be >= api.default_page_size (%d)",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}
