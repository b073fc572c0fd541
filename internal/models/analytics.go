// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package models

import "time"

// ActiveSession is one entry in the "currently active" listing. The listing
// merges live connections with recently-active persisted rows; Source records
// which side won for a given session id.
type ActiveSession struct {
	SessionID    string    `json:"session_id"`
	EventID      string    `json:"event_id"`
	Identity     *Identity `json:"identity,omitempty"`
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	Source       string    `json:"source"` // "live" or "store"
}

// SessionAnalytics aggregates persisted session logs for one event.
// All averages are rounded to 2 decimal places.
type SessionAnalytics struct {
	EventID              string  `json:"event_id"`
	TotalSessions        int     `json:"total_sessions"`
	UniqueUsers          int     `json:"unique_users"`
	TotalClicks          int64   `json:"total_clicks"`
	TotalScrolls         int64   `json:"total_scrolls"`
	TotalPageViews       int64   `json:"total_page_views"`
	AvgDurationSeconds   float64 `json:"avg_duration_seconds"`
	AvgClicksPerSession  float64 `json:"avg_clicks_per_session"`
	AvgScrollsPerSession float64 `json:"avg_scrolls_per_session"`
}

// HeatmapBucket is one fixed-size grid cell of aggregated clicks.
type HeatmapBucket struct {
	BucketX   int     `json:"bucket_x"`
	BucketY   int     `json:"bucket_y"`
	Count     int     `json:"count"`
	CentroidX float64 `json:"centroid_x"`
	CentroidY float64 `json:"centroid_y"`
}

// HeatmapResponse is the click heatmap for one event, optionally filtered
// to a single page. Buckets are sorted by count descending.
type HeatmapResponse struct {
	EventID     string          `json:"event_id"`
	Page        string          `json:"page,omitempty"`
	Resolution  int             `json:"resolution"`
	TotalClicks int             `json:"total_clicks"`
	Buckets     []HeatmapBucket `json:"buckets"`
}

// DeviceBucket is the session count and average duration for one device type.
type DeviceBucket struct {
	DeviceType         string  `json:"device_type"`
	Sessions           int     `json:"sessions"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// HourlyBucket is the session count and average duration for one hour of
// day (0-23) of session start, sorted ascending by hour.
type HourlyBucket struct {
	Hour               int     `json:"hour"`
	Sessions           int     `json:"sessions"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
}

// SessionExportRow is the flattened row-per-session shape shared by the
// CSV and JSON export formats.
type SessionExportRow struct {
	SessionID       string     `json:"session_id"`
	EventID         string     `json:"event_id"`
	UserID          string     `json:"user_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
	IsActive        bool       `json:"is_active"`
	TotalClicks     int64      `json:"total_clicks"`
	TotalScrolls    int64      `json:"total_scrolls"`
	PagesVisited    int        `json:"pages_visited"`
	DeviceType      string     `json:"device_type,omitempty"`
	OS              string     `json:"os,omitempty"`
	Browser         string     `json:"browser,omitempty"`
	Country         string     `json:"country,omitempty"`
	City            string     `json:"city,omitempty"`
}
