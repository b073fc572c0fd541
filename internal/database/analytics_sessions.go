// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
)

// round2 rounds to 2 decimal places; every exported average uses it.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ActiveStoreSessions lists persisted rows that are still marked active and
// showed activity at or after activeSince. The aggregator merges these with
// the live connection registry; the store side alone may lag behind.
func (db *DB) ActiveStoreSessions(ctx context.Context, eventID string, activeSince time.Time) ([]models.ActiveSession, error) {
	defer metrics.ObserveQuery("active_store_sessions", time.Now())

	var sessions []models.ActiveSession
	err := db.queryAndScan(ctx,
		`SELECT session_id, user_id, start_time, last_activity FROM session_logs
		 WHERE event_id = ? AND is_active AND last_activity >= ?
		 ORDER BY last_activity DESC`,
		[]interface{}{eventID, activeSince},
		func(rows *sql.Rows) error {
			var (
				s      models.ActiveSession
				userID sql.NullString
			)
			if err := rows.Scan(&s.SessionID, &userID, &s.StartTime, &s.LastActivity); err != nil {
				return err
			}
			s.EventID = eventID
			s.Source = "store"
			if userID.Valid {
				s.Identity = &models.Identity{UserID: userID.String}
			}
			sessions = append(sessions, s)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSessionAnalytics aggregates persisted sessions for one event. An empty
// result set yields a zero-valued response, never an error.
func (db *DB) GetSessionAnalytics(ctx context.Context, eventID string, filter SessionFilter) (*models.SessionAnalytics, error) {
	defer metrics.ObserveQuery("session_analytics", time.Now())

	where, args := buildFilterConditions(eventID, filter, "start_time")

	query := `SELECT
			COUNT(*),
			COUNT(DISTINCT user_id),
			COALESCE(SUM(total_clicks), 0),
			COALESCE(SUM(total_scrolls), 0),
			COALESCE(AVG(duration_seconds), 0)
		FROM session_logs WHERE ` + where

	result := &models.SessionAnalytics{EventID: eventID}
	var avgDuration float64
	row := db.conn.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&result.TotalSessions, &result.UniqueUsers, &result.TotalClicks, &result.TotalScrolls, &avgDuration); err != nil {
		return nil, fmt.Errorf("session analytics: %w", err)
	}

	joinWhere, joinArgs := buildPrefixedFilterConditions(eventID, filter, "start_time", "sl.")
	pageViewQuery := `SELECT COUNT(*) FROM page_visits pv
		JOIN session_logs sl ON pv.session_log_id = sl.id
		WHERE ` + joinWhere
	row = db.conn.QueryRowContext(ctx, pageViewQuery, joinArgs...)
	if err := row.Scan(&result.TotalPageViews); err != nil {
		return nil, fmt.Errorf("page view count: %w", err)
	}

	result.AvgDurationSeconds = round2(avgDuration)
	if result.TotalSessions > 0 {
		result.AvgClicksPerSession = round2(float64(result.TotalClicks) / float64(result.TotalSessions))
		result.AvgScrollsPerSession = round2(float64(result.TotalScrolls) / float64(result.TotalSessions))
	}

	return result, nil
}
