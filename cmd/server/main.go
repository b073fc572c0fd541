// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package main is the entry point for the EventLens server.
//
// EventLens tracks attendee engagement for live events: browsers stream
// cursor and interaction samples over a websocket (or the REST mirror),
// peers in the same event room see each other's activity in real time, and
// a throttled summary is persisted to DuckDB for the analytics dashboards.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, config.yaml, and
//     environment variables (Koanf v2)
//  2. Database: DuckDB session log store, schema created on startup
//  3. Tracking core: connection registry, room broadcaster, ingestion
//     pipeline with sampled persistence
//  4. Supervisor tree: reconciler sweeper, retention purger, HTTP server
//
// # Configuration
//
// See internal/config for the environment variable mapping table. The
// most relevant knobs:
//
//	HTTP_PORT                  listen port (default 4380)
//	DUCKDB_PATH                database file (default /data/eventlens.duckdb)
//	TRACKING_SAMPLE_RATE       persisted fraction of move samples (default 0.1)
//	TRACKING_INACTIVITY_TIMEOUT staleness cutoff (default 5m)
//	TRACKING_RETENTION_DAYS    retention horizon (default 90)
//	CORS_ORIGINS               comma-separated allowed origins
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the supervisor
// tree stops its services, the HTTP server drains in-flight requests, and
// the database is closed last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/eventlens/eventlens/internal/api"
	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/ingest"
	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/reconciler"
	"github.com/eventlens/eventlens/internal/registry"
	"github.com/eventlens/eventlens/internal/rooms"
	"github.com/eventlens/eventlens/internal/supervisor"
	"github.com/eventlens/eventlens/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Float64("move_sample_rate", cfg.Tracking.MoveSampleRate).
		Dur("inactivity_timeout", cfg.Tracking.InactivityTimeout).
		Int("retention_days", cfg.Tracking.RetentionDays).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	db.SetCursorBufferCap(cfg.Tracking.CursorBufferCap)
	logging.Info().Msg("Database initialized successfully")

	// Tracking core. Event lifecycle lives in an external system; without
	// one wired in, every event id is accepted.
	reg := registry.New()
	broadcaster := rooms.NewBroadcaster()
	var oracle ingest.EventOracle = ingest.AllowAllOracle{}
	logging.Warn().Msg("No event service configured, accepting all event ids")

	pipeline := ingest.NewPipeline(reg, broadcaster, db, oracle,
		ingest.NewRateSampler(cfg.Tracking.MoveSampleRate))

	router := api.NewRouter(cfg, db, pipeline, reg)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// Supervision tree: reconciler and purger in the tracking layer, the
	// HTTP server in the api layer.
	treeConfig := supervisor.DefaultTreeConfig()
	treeConfig.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeConfig)

	tree.AddTrackingService(reconciler.NewSweeper(reg, broadcaster, db,
		cfg.Tracking.SweepInterval, cfg.Tracking.InactivityTimeout))
	tree.AddTrackingService(reconciler.NewPurger(db, cfg.Tracking.RetentionDays))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting EventLens server")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("Supervisor tree exited with error")
	}

	logging.Info().Msg("Shutdown complete")
}
