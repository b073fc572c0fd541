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

// GetDeviceDistribution groups persisted sessions by device type with count
// and average duration. Sessions with no device info fall into "unknown".
func (db *DB) GetDeviceDistribution(ctx context.Context, eventID string, filter SessionFilter) ([]models.DeviceBucket, error) {
	defer metrics.ObserveQuery("device_distribution", time.Now())

	where, args := buildFilterConditions(eventID, filter, "start_time")

	query := `SELECT
			COALESCE(NULLIF(device_type, ''), 'unknown') AS device,
			COUNT(*),
			COALESCE(AVG(duration_seconds), 0)
		FROM session_logs
		WHERE ` + where + `
		GROUP BY device
		ORDER BY COUNT(*) DESC, device`

	buckets := []models.DeviceBucket{}
	err := db.queryAndScan(ctx, query, args, func(rows *sql.Rows) error {
		var (
			b   models.DeviceBucket
			avg float64
		)
		if err := rows.Scan(&b.DeviceType, &b.Sessions, &avg); err != nil {
			return err
		}
		b.AvgDurationSeconds = round2(avg)
		buckets = append(buckets, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

// GetHourlyDistribution groups persisted sessions by hour-of-day of their
// start time (0-23), sorted ascending by hour. Hours with no sessions are
// omitted rather than zero-filled.
func (db *DB) GetHourlyDistribution(ctx context.Context, eventID string, filter SessionFilter) ([]models.HourlyBucket, error) {
	defer metrics.ObserveQuery("hourly_distribution", time.Now())

	where, args := buildFilterConditions(eventID, filter, "start_time")

	query := `SELECT
			CAST(EXTRACT(hour FROM start_time) AS INTEGER) AS hour,
			COUNT(*),
			COALESCE(AVG(duration_seconds), 0)
		FROM session_logs
		WHERE ` + where + `
		GROUP BY hour
		ORDER BY hour ASC`

	buckets := []models.HourlyBucket{}
	err := db.queryAndScan(ctx, query, args, func(rows *sql.Rows) error {
		var (
			b   models.HourlyBucket
			avg float64
		)
		if err := rows.Scan(&b.Hour, &b.Sessions, &avg); err != nil {
			return err
		}
		b.AvgDurationSeconds = round2(avg)
		buckets = append(buckets, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buckets, nil
}
