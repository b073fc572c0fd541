// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

/*
schema.go - Database Schema Management

Tables:
  - session_logs: one row per tracking session (one browser context visiting
    one event); scalar counters and lifecycle timestamps
  - cursor_samples: bounded per-session buffer of raw interaction samples
  - heatmap_clicks: every click, for click-density heatmaps
  - heatmap_hovers: hover dwells with duration
  - scroll_depth: one row per (session, page) holding the maximum depth seen
  - page_visits: one row per (session, page) accumulating total time spent

All columns are defined in the initial CREATE TABLE statements; there are no
migrations yet. A sequence provides a global write order for cursor samples
so the per-session cap can trim the oldest rows deterministically.
*/
package database

import (
	"context"
	"fmt"
	"time"
)

// cursorBufferCap is the per-session cap on retained raw cursor samples.
const cursorBufferCap = 1000

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS cursor_sample_seq`,

		`CREATE TABLE IF NOT EXISTS session_logs (
			id UUID PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_id TEXT NOT NULL,
			user_id TEXT,

			user_agent TEXT,
			ip_address TEXT,
			device_type TEXT,
			device_os TEXT,
			device_browser TEXT,
			device_screen TEXT,
			geo_country TEXT,
			geo_region TEXT,
			geo_city TEXT,
			geo_timezone TEXT,

			start_time TIMESTAMP NOT NULL,
			last_activity TIMESTAMP NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT true,
			end_time TIMESTAMP,
			duration_seconds BIGINT,

			total_clicks BIGINT NOT NULL DEFAULT 0,
			total_scrolls BIGINT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS cursor_samples (
			session_log_id UUID NOT NULL,
			seq BIGINT NOT NULL DEFAULT nextval('cursor_sample_seq'),
			x DOUBLE NOT NULL,
			y DOUBLE NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			page TEXT NOT NULL,
			element TEXT,
			action TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS heatmap_clicks (
			session_log_id UUID NOT NULL,
			x DOUBLE NOT NULL,
			y DOUBLE NOT NULL,
			page TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS heatmap_hovers (
			session_log_id UUID NOT NULL,
			x DOUBLE NOT NULL,
			y DOUBLE NOT NULL,
			duration_ms BIGINT NOT NULL,
			page TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS scroll_depth (
			session_log_id UUID NOT NULL,
			page TEXT NOT NULL,
			max_depth_pct DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (session_log_id, page)
		)`,

		`CREATE TABLE IF NOT EXISTS page_visits (
			session_log_id UUID NOT NULL,
			page TEXT NOT NULL,
			time_spent_seconds DOUBLE NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (session_log_id, page)
		)`,
	}
}

// createIndexes creates indexes for the common query patterns: lookup of
// the active row for a (session, event) pair, event-scoped analytics scans,
// and retention sweeps by start time.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_session_logs_pair ON session_logs (session_id, event_id, is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_session_logs_event ON session_logs (event_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_session_logs_active ON session_logs (is_active, last_activity)`,
		`CREATE INDEX IF NOT EXISTS idx_cursor_samples_session ON cursor_samples (session_log_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_heatmap_clicks_session ON heatmap_clicks (session_log_id, page)`,
		`CREATE INDEX IF NOT EXISTS idx_heatmap_hovers_session ON heatmap_hovers (session_log_id, page)`,
	}

	for _, query := range indexes {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}

	return nil
}
