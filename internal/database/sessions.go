// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
)

// sessionLogColumns is the column list shared by every session_logs scan.
const sessionLogColumns = `id, session_id, event_id, user_id,
	user_agent, ip_address,
	device_type, device_os, device_browser, device_screen,
	geo_country, geo_region, geo_city, geo_timezone,
	start_time, last_activity, is_active, end_time, duration_seconds,
	total_clicks, total_scrolls`

// StartOrResume returns the active session log for (sessionID, eventID),
// creating one seeded from cc if none exists. At most one active row per
// pair: resuming an already-active pair returns the existing row and never
// creates a duplicate. Device info is refreshed when the client resends it.
func (db *DB) StartOrResume(ctx context.Context, sessionID, eventID string, userID *string, cc models.ClientContext) (*models.SessionLog, error) {
	defer metrics.ObserveQuery("start_or_resume", time.Now())

	existing, err := db.activeSessionLog(ctx, sessionID, eventID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		now := db.now()
		if cc.Device.Type != "" {
			_, err = db.execStmt(ctx,
				`UPDATE session_logs SET last_activity = ?, device_type = ?, device_os = ?, device_browser = ?, device_screen = ? WHERE id = ?`,
				now, cc.Device.Type, cc.Device.OS, cc.Device.Browser, cc.Device.ScreenResolution, existing.ID)
			if err == nil {
				existing.Device = cc.Device
			}
		} else {
			_, err = db.execStmt(ctx, `UPDATE session_logs SET last_activity = ? WHERE id = ?`, now, existing.ID)
		}
		if err != nil {
			return nil, err
		}
		existing.LastActivity = now
		return existing, nil
	}

	now := db.now()
	log := &models.SessionLog{
		ID:           uuid.New(),
		SessionID:    sessionID,
		EventID:      eventID,
		UserID:       userID,
		UserAgent:    cc.UserAgent,
		IPAddress:    cc.IPAddress,
		Device:       cc.Device,
		Location:     cc.Location,
		StartTime:    now,
		LastActivity: now,
		IsActive:     true,
	}

	_, err = db.execStmt(ctx, `INSERT INTO session_logs (
			id, session_id, event_id, user_id,
			user_agent, ip_address,
			device_type, device_os, device_browser, device_screen,
			geo_country, geo_region, geo_city, geo_timezone,
			start_time, last_activity, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, true)`,
		log.ID, sessionID, eventID, userID,
		cc.UserAgent, cc.IPAddress,
		cc.Device.Type, cc.Device.OS, cc.Device.Browser, cc.Device.ScreenResolution,
		cc.Location.Country, cc.Location.Region, cc.Location.City, cc.Location.Timezone,
		now, now)
	if err != nil {
		return nil, fmt.Errorf("insert session log: %w", err)
	}

	return log, nil
}

// activeSessionLog fetches the active row for a pair, nil when none exists.
func (db *DB) activeSessionLog(ctx context.Context, sessionID, eventID string) (*models.SessionLog, error) {
	query := `SELECT ` + sessionLogColumns + ` FROM session_logs
		WHERE session_id = ? AND event_id = ? AND is_active
		ORDER BY start_time DESC LIMIT 1`

	row := db.conn.QueryRowContext(ctx, query, sessionID, eventID)
	log, err := scanSessionLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active session: %w", err)
	}
	return log, nil
}

// ensureActive resolves the active row id for a pair, creating a minimal
// row when the first interaction arrives before any explicit session start.
func (db *DB) ensureActive(ctx context.Context, sessionID, eventID string) (uuid.UUID, error) {
	existing, err := db.activeSessionLog(ctx, sessionID, eventID)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.ID, nil
	}

	log, err := db.StartOrResume(ctx, sessionID, eventID, nil, models.ClientContext{})
	if err != nil {
		return uuid.Nil, err
	}
	return log.ID, nil
}

// AppendCursorSample appends one raw sample to the session's bounded buffer
// and bumps last-activity. Samples beyond the cap roll off oldest-first.
func (db *DB) AppendCursorSample(ctx context.Context, sessionID, eventID string, s models.CursorSample) error {
	defer metrics.ObserveQuery("append_cursor_sample", time.Now())

	id, err := db.ensureActive(ctx, sessionID, eventID)
	if err != nil {
		return err
	}
	return db.appendSample(ctx, id, s)
}

func (db *DB) appendSample(ctx context.Context, id uuid.UUID, s models.CursorSample) error {
	_, err := db.execStmt(ctx,
		`INSERT INTO cursor_samples (session_log_id, x, y, recorded_at, page, element, action)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, s.X, s.Y, s.Timestamp, s.Page, s.Element, s.Action)
	if err != nil {
		return fmt.Errorf("insert cursor sample: %w", err)
	}

	// Trim the buffer to the cap, dropping the oldest samples.
	_, err = db.execStmt(ctx,
		`DELETE FROM cursor_samples WHERE session_log_id = ? AND seq NOT IN (
			SELECT seq FROM cursor_samples WHERE session_log_id = ? ORDER BY seq DESC LIMIT `+fmt.Sprint(db.cursorCap)+`)`,
		id, id)
	if err != nil {
		return fmt.Errorf("trim cursor samples: %w", err)
	}

	_, err = db.execStmt(ctx, `UPDATE session_logs SET last_activity = ? WHERE id = ?`, db.now(), id)
	return err
}

// RecordClick appends the raw sample, records a heatmap click, and
// increments the session's click counter.
func (db *DB) RecordClick(ctx context.Context, sessionID, eventID string, s models.CursorSample) error {
	defer metrics.ObserveQuery("record_click", time.Now())

	id, err := db.ensureActive(ctx, sessionID, eventID)
	if err != nil {
		return err
	}

	if err := db.appendSample(ctx, id, s); err != nil {
		return err
	}

	_, err = db.execStmt(ctx,
		`INSERT INTO heatmap_clicks (session_log_id, x, y, page, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		id, s.X, s.Y, s.Page, s.Timestamp)
	if err != nil {
		return fmt.Errorf("insert heatmap click: %w", err)
	}

	_, err = db.execStmt(ctx, `UPDATE session_logs SET total_clicks = total_clicks + 1 WHERE id = ?`, id)
	return err
}

// RecordHover appends the raw sample and records a hover dwell.
func (db *DB) RecordHover(ctx context.Context, sessionID, eventID string, s models.CursorSample, durationMS int64) error {
	defer metrics.ObserveQuery("record_hover", time.Now())

	id, err := db.ensureActive(ctx, sessionID, eventID)
	if err != nil {
		return err
	}

	if err := db.appendSample(ctx, id, s); err != nil {
		return err
	}

	_, err = db.execStmt(ctx,
		`INSERT INTO heatmap_hovers (session_log_id, x, y, duration_ms, page, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.X, s.Y, durationMS, s.Page, s.Timestamp)
	if err != nil {
		return fmt.Errorf("insert heatmap hover: %w", err)
	}
	return nil
}

// RecordScroll appends the raw sample, max-merges the page's scroll depth,
// and increments the session's scroll counter. Depth never decreases:
// recording 30 then 20 for the same page leaves the stored max at 30.
func (db *DB) RecordScroll(ctx context.Context, sessionID, eventID string, s models.CursorSample, depthPct float64) error {
	defer metrics.ObserveQuery("record_scroll", time.Now())

	id, err := db.ensureActive(ctx, sessionID, eventID)
	if err != nil {
		return err
	}

	if err := db.appendSample(ctx, id, s); err != nil {
		return err
	}

	_, err = db.execStmt(ctx,
		`INSERT INTO scroll_depth (session_log_id, page, max_depth_pct, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_log_id, page) DO UPDATE SET
			max_depth_pct = GREATEST(scroll_depth.max_depth_pct, excluded.max_depth_pct),
			updated_at = excluded.updated_at`,
		id, s.Page, depthPct, s.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert scroll depth: %w", err)
	}

	_, err = db.execStmt(ctx, `UPDATE session_logs SET total_scrolls = total_scrolls + 1 WHERE id = ?`, id)
	return err
}

// RecordPageVisit adds seconds to the page's accumulated time, inserting
// the page on first visit.
func (db *DB) RecordPageVisit(ctx context.Context, sessionID, eventID, page string, seconds float64) error {
	defer metrics.ObserveQuery("record_page_visit", time.Now())

	id, err := db.ensureActive(ctx, sessionID, eventID)
	if err != nil {
		return err
	}

	now := db.now()
	_, err = db.execStmt(ctx,
		`INSERT INTO page_visits (session_log_id, page, time_spent_seconds, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_log_id, page) DO UPDATE SET
			time_spent_seconds = page_visits.time_spent_seconds + excluded.time_spent_seconds,
			updated_at = excluded.updated_at`,
		id, page, seconds, now)
	if err != nil {
		return fmt.Errorf("upsert page visit: %w", err)
	}

	_, err = db.execStmt(ctx, `UPDATE session_logs SET last_activity = ? WHERE id = ?`, now, id)
	return err
}

// CloseSession closes the active row for the pair, setting the end time and
// computed duration. Reports false with a nil error when no active row
// exists; closing an already-closed session changes nothing, so repeated
// calls observe the same stored duration.
func (db *DB) CloseSession(ctx context.Context, sessionID, eventID string, endTime time.Time) (bool, error) {
	defer metrics.ObserveQuery("close_session", time.Now())

	affected, err := db.execStmt(ctx,
		`UPDATE session_logs SET
			is_active = false,
			end_time = ?,
			last_activity = ?,
			duration_seconds = CAST(date_diff('second', start_time, CAST(? AS TIMESTAMP)) AS BIGINT)
		 WHERE session_id = ? AND event_id = ? AND is_active`,
		endTime, endTime, endTime, sessionID, eventID)
	if err != nil {
		return false, fmt.Errorf("close session: %w", err)
	}
	return affected > 0, nil
}

// CloseStaleSessions closes every active row whose last activity is older
// than cutoff. The last activity time becomes the end time, since it is the
// last proven sign of life. Returns the number of rows closed.
func (db *DB) CloseStaleSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	defer metrics.ObserveQuery("close_stale_sessions", time.Now())

	affected, err := db.execStmt(ctx,
		`UPDATE session_logs SET
			is_active = false,
			end_time = last_activity,
			duration_seconds = CAST(date_diff('second', start_time, last_activity) AS BIGINT)
		 WHERE is_active AND last_activity < ?`,
		cutoff)
	if err != nil {
		return 0, fmt.Errorf("close stale sessions: %w", err)
	}
	return affected, nil
}

// PurgeExpired deletes session logs that started before the retention
// horizon, along with their samples and heatmap rows. Returns the number of
// session rows removed.
func (db *DB) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	defer metrics.ObserveQuery("purge_expired", time.Now())

	childTables := []string{"cursor_samples", "heatmap_clicks", "heatmap_hovers", "scroll_depth", "page_visits"}
	for _, table := range childTables {
		_, err := db.conn.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE session_log_id IN (SELECT id FROM session_logs WHERE start_time < ?)`,
			before)
		if err != nil {
			return 0, fmt.Errorf("purge %s: %w", table, err)
		}
	}

	affected, err := db.execStmt(ctx, `DELETE FROM session_logs WHERE start_time < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("purge session logs: %w", err)
	}
	return affected, nil
}

// GetSessionLog returns the most recent row for a pair, active or not, nil
// when the pair has never been seen.
func (db *DB) GetSessionLog(ctx context.Context, sessionID, eventID string) (*models.SessionLog, error) {
	query := `SELECT ` + sessionLogColumns + ` FROM session_logs
		WHERE session_id = ? AND event_id = ?
		ORDER BY start_time DESC LIMIT 1`

	row := db.conn.QueryRowContext(ctx, query, sessionID, eventID)
	log, err := scanSessionLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query session log: %w", err)
	}
	return log, nil
}

// CursorSamples returns the retained raw samples for a session row in
// insertion order.
func (db *DB) CursorSamples(ctx context.Context, sessionLogID uuid.UUID) ([]models.CursorSample, error) {
	var samples []models.CursorSample
	err := db.queryAndScan(ctx,
		`SELECT x, y, recorded_at, page, element, action FROM cursor_samples WHERE session_log_id = ? ORDER BY seq`,
		[]interface{}{sessionLogID},
		func(rows *sql.Rows) error {
			var s models.CursorSample
			var element sql.NullString
			if err := rows.Scan(&s.X, &s.Y, &s.Timestamp, &s.Page, &element, &s.Action); err != nil {
				return err
			}
			s.Element = element.String
			samples = append(samples, s)
			return nil
		})
	return samples, err
}

// ScrollDepths returns the per-page maximum scroll depths for a session row.
func (db *DB) ScrollDepths(ctx context.Context, sessionLogID uuid.UUID) ([]models.ScrollDepthEntry, error) {
	var entries []models.ScrollDepthEntry
	err := db.queryAndScan(ctx,
		`SELECT page, max_depth_pct, updated_at FROM scroll_depth WHERE session_log_id = ? ORDER BY page`,
		[]interface{}{sessionLogID},
		func(rows *sql.Rows) error {
			var e models.ScrollDepthEntry
			if err := rows.Scan(&e.Page, &e.MaxDepthPct, &e.UpdatedAt); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	return entries, err
}

// PageVisits returns the per-page accumulated time for a session row.
func (db *DB) PageVisits(ctx context.Context, sessionLogID uuid.UUID) ([]models.PageVisit, error) {
	var visits []models.PageVisit
	err := db.queryAndScan(ctx,
		`SELECT page, time_spent_seconds, updated_at FROM page_visits WHERE session_log_id = ? ORDER BY page`,
		[]interface{}{sessionLogID},
		func(rows *sql.Rows) error {
			var v models.PageVisit
			if err := rows.Scan(&v.Page, &v.TimeSpentSeconds, &v.UpdatedAt); err != nil {
				return err
			}
			visits = append(visits, v)
			return nil
		})
	return visits, err
}

// HeatmapClickCount returns the number of heatmap clicks recorded for a
// session row.
func (db *DB) HeatmapClickCount(ctx context.Context, sessionLogID uuid.UUID) (int, error) {
	var count int
	row := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM heatmap_clicks WHERE session_log_id = ?`, sessionLogID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count heatmap clicks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSessionLog scans one session_logs row in sessionLogColumns order.
func scanSessionLog(row rowScanner) (*models.SessionLog, error) {
	var (
		log             models.SessionLog
		userID          sql.NullString
		userAgent       sql.NullString
		ipAddress       sql.NullString
		deviceType      sql.NullString
		deviceOS        sql.NullString
		deviceBrowser   sql.NullString
		deviceScreen    sql.NullString
		geoCountry      sql.NullString
		geoRegion       sql.NullString
		geoCity         sql.NullString
		geoTimezone     sql.NullString
		endTime         sql.NullTime
		durationSeconds sql.NullInt64
	)

	err := row.Scan(
		&log.ID, &log.SessionID, &log.EventID, &userID,
		&userAgent, &ipAddress,
		&deviceType, &deviceOS, &deviceBrowser, &deviceScreen,
		&geoCountry, &geoRegion, &geoCity, &geoTimezone,
		&log.StartTime, &log.LastActivity, &log.IsActive, &endTime, &durationSeconds,
		&log.TotalClicks, &log.TotalScrolls,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		log.UserID = &userID.String
	}
	log.UserAgent = userAgent.String
	log.IPAddress = ipAddress.String
	log.Device = models.DeviceInfo{
		Type:             deviceType.String,
		OS:               deviceOS.String,
		Browser:          deviceBrowser.String,
		ScreenResolution: deviceScreen.String,
	}
	log.Location = models.GeoInfo{
		Country:  geoCountry.String,
		Region:   geoRegion.String,
		City:     geoCity.String,
		Timezone: geoTimezone.String,
	}
	if endTime.Valid {
		log.EndTime = &endTime.Time
	}
	if durationSeconds.Valid {
		log.DurationSeconds = &durationSeconds.Int64
	}

	return &log, nil
}
