// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
)

// DefaultHeatmapResolution is the grid cell size used when a caller does
// not specify one.
const DefaultHeatmapResolution = 10

// GetHeatmap buckets every recorded click for the event into a fixed grid
// of resolution-sized cells: floor(x/resolution), floor(y/resolution). Each
// bucket carries its click count and centroid (mean x, mean y); buckets are
// sorted by count descending. Date filters apply to the click timestamp.
func (db *DB) GetHeatmap(ctx context.Context, eventID string, filter SessionFilter, resolution int) (*models.HeatmapResponse, error) {
	defer metrics.ObserveQuery("heatmap", time.Now())

	if resolution <= 0 {
		resolution = DefaultHeatmapResolution
	}

	clauses := []string{"sl.event_id = ?"}
	args := []interface{}{float64(resolution), float64(resolution), eventID}
	if filter.StartDate != nil {
		clauses = append(clauses, "hc.recorded_at >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		clauses = append(clauses, "hc.recorded_at <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Page != "" {
		clauses = append(clauses, "hc.page = ?")
		args = append(args, filter.Page)
	}

	query := `SELECT
			CAST(FLOOR(hc.x / ?) AS INTEGER) AS bucket_x,
			CAST(FLOOR(hc.y / ?) AS INTEGER) AS bucket_y,
			COUNT(*),
			AVG(hc.x),
			AVG(hc.y)
		FROM heatmap_clicks hc
		JOIN session_logs sl ON hc.session_log_id = sl.id
		WHERE ` + strings.Join(clauses, " AND ") + `
		GROUP BY bucket_x, bucket_y
		ORDER BY COUNT(*) DESC, bucket_x, bucket_y`

	response := &models.HeatmapResponse{
		EventID:    eventID,
		Page:       filter.Page,
		Resolution: resolution,
		Buckets:    []models.HeatmapBucket{},
	}

	err := db.queryAndScan(ctx, query, args, func(rows *sql.Rows) error {
		var b models.HeatmapBucket
		if err := rows.Scan(&b.BucketX, &b.BucketY, &b.Count, &b.CentroidX, &b.CentroidY); err != nil {
			return err
		}
		response.TotalClicks += b.Count
		response.Buckets = append(response.Buckets, b)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return response, nil
}
