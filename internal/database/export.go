// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
)

// ExportSessions returns the flattened row-per-session export for one
// event. Both export formats (CSV and JSON) serialize this same row set,
// so they always agree for the same filter.
func (db *DB) ExportSessions(ctx context.Context, eventID string, filter SessionFilter) ([]models.SessionExportRow, error) {
	defer metrics.ObserveQuery("export_sessions", time.Now())

	where, args := buildFilterConditions(eventID, filter, "start_time")

	query := `SELECT
			sl.session_id, sl.event_id, sl.user_id,
			sl.start_time, sl.end_time, sl.duration_seconds, sl.is_active,
			sl.total_clicks, sl.total_scrolls,
			(SELECT COUNT(*) FROM page_visits pv WHERE pv.session_log_id = sl.id),
			sl.device_type, sl.device_os, sl.device_browser,
			sl.geo_country, sl.geo_city
		FROM session_logs sl
		WHERE ` + where + `
		ORDER BY sl.start_time ASC, sl.session_id ASC`

	rowsOut := []models.SessionExportRow{}
	err := db.queryAndScan(ctx, query, args, func(rows *sql.Rows) error {
		var (
			r               models.SessionExportRow
			userID          sql.NullString
			endTime         sql.NullTime
			durationSeconds sql.NullInt64
			deviceType      sql.NullString
			deviceOS        sql.NullString
			deviceBrowser   sql.NullString
			country         sql.NullString
			city            sql.NullString
		)
		if err := rows.Scan(
			&r.SessionID, &r.EventID, &userID,
			&r.StartTime, &endTime, &durationSeconds, &r.IsActive,
			&r.TotalClicks, &r.TotalScrolls,
			&r.PagesVisited,
			&deviceType, &deviceOS, &deviceBrowser,
			&country, &city,
		); err != nil {
			return err
		}

		r.UserID = userID.String
		if endTime.Valid {
			r.EndTime = &endTime.Time
		}
		if durationSeconds.Valid {
			r.DurationSeconds = &durationSeconds.Int64
		}
		r.DeviceType = deviceType.String
		r.OS = deviceOS.String
		r.Browser = deviceBrowser.String
		r.Country = country.String
		r.City = city.String

		rowsOut = append(rowsOut, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rowsOut, nil
}
