// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package api

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/models"
)

// pageLimit resolves the limit query parameter against the configured page
// size bounds: absent or non-positive falls back to the default, anything
// above the maximum is clamped.
func (h *Handler) pageLimit(r *http.Request) int {
	limit := getIntParam(r, "limit", h.cfg.API.DefaultPageSize)
	if limit < 1 {
		limit = h.cfg.API.DefaultPageSize
	}
	if limit > h.cfg.API.MaxPageSize {
		limit = h.cfg.API.MaxPageSize
	}
	return limit
}

// ActiveSessions lists the currently active sessions for an event: the
// union of live connections and recently-active persisted rows, deduplicated
// by session id with live entries taking precedence. Results are ordered by
// most recent activity; count reflects the full set even when limit
// truncates the returned page.
func (h *Handler) ActiveSessions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	eventID := chi.URLParam(r, "eventID")

	merged := make(map[string]models.ActiveSession)

	activeSince := time.Now().Add(-h.cfg.Tracking.InactivityTimeout)
	stored, err := h.db.ActiveStoreSessions(r.Context(), eventID, activeSince)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query active sessions", err)
		return
	}
	for _, s := range stored {
		merged[s.SessionID] = s
	}

	// Live registry entries overwrite store rows for the same session id;
	// they are more current.
	for _, entry := range h.registry.ListByRoom(eventID) {
		if entry.SessionID == "" {
			continue
		}
		merged[entry.SessionID] = models.ActiveSession{
			SessionID:    entry.SessionID,
			EventID:      eventID,
			Identity:     entry.Identity,
			StartTime:    entry.ConnectedAt,
			LastActivity: entry.LastActivity,
			Source:       "live",
		}
	}

	sessions := make([]models.ActiveSession, 0, len(merged))
	for _, s := range merged {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].LastActivity.Equal(sessions[j].LastActivity) {
			return sessions[i].LastActivity.After(sessions[j].LastActivity)
		}
		return sessions[i].SessionID < sessions[j].SessionID
	})

	total := len(sessions)
	if limit := h.pageLimit(r); total > limit {
		sessions = sessions[:limit]
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"event_id": eventID,
		"count":    total,
		"sessions": sessions,
	}, started)
}

// SessionAnalytics returns the aggregated session metrics for an event.
func (h *Handler) SessionAnalytics(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	eventID := chi.URLParam(r, "eventID")

	analytics, err := h.db.GetSessionAnalytics(r.Context(), eventID, parseDateFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to aggregate sessions", err)
		return
	}

	respondSuccess(w, http.StatusOK, analytics, started)
}

// Heatmap returns the bucketed click heatmap for an event.
func (h *Handler) Heatmap(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	eventID := chi.URLParam(r, "eventID")

	resolution := getIntParam(r, "resolution", database.DefaultHeatmapResolution)
	if resolution <= 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "resolution must be a positive integer", nil)
		return
	}

	heatmap, err := h.db.GetHeatmap(r.Context(), eventID, parseDateFilter(r), resolution)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to build heatmap", err)
		return
	}

	respondSuccess(w, http.StatusOK, heatmap, started)
}

// DeviceDistribution returns sessions grouped by device type.
func (h *Handler) DeviceDistribution(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	eventID := chi.URLParam(r, "eventID")

	buckets, err := h.db.GetDeviceDistribution(r.Context(), eventID, parseDateFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to aggregate devices", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"event_id": eventID,
		"devices":  buckets,
	}, started)
}

// HourlyDistribution returns sessions grouped by hour of day.
func (h *Handler) HourlyDistribution(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	eventID := chi.URLParam(r, "eventID")

	buckets, err := h.db.GetHourlyDistribution(r.Context(), eventID, parseDateFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to aggregate hours", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"event_id": eventID,
		"hours":    buckets,
	}, started)
}

// Export returns the row-per-session export in CSV (format=csv) or JSON
// (format=json, the default). Both formats serialize the same row set for
// the same filter.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	eventID := chi.URLParam(r, "eventID")

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "format must be json or csv", nil)
		return
	}

	rows, err := h.db.ExportSessions(r.Context(), eventID, parseDateFilter(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to export sessions", err)
		return
	}

	if format == "csv" {
		writeCSVExport(w, eventID, rows)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"event_id": eventID,
		"count":    len(rows),
		"sessions": rows,
	}, started)
}

var exportCSVHeader = []string{
	"session_id", "event_id", "user_id",
	"start_time", "end_time", "duration_seconds", "is_active",
	"total_clicks", "total_scrolls", "pages_visited",
	"device_type", "os", "browser", "country", "city",
}

func writeCSVExport(w http.ResponseWriter, eventID string, rows []models.SessionExportRow) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "sessions-"+eventID+".csv"))

	cw := csv.NewWriter(w)
	if err := cw.Write(exportCSVHeader); err != nil {
		logging.Error().Err(err).Msg("failed to write CSV header")
		return
	}

	for _, row := range rows {
		endTime := ""
		if row.EndTime != nil {
			endTime = row.EndTime.UTC().Format(time.RFC3339)
		}
		duration := ""
		if row.DurationSeconds != nil {
			duration = strconv.FormatInt(*row.DurationSeconds, 10)
		}

		record := []string{
			row.SessionID, row.EventID, row.UserID,
			row.StartTime.UTC().Format(time.RFC3339), endTime, duration, strconv.FormatBool(row.IsActive),
			strconv.FormatInt(row.TotalClicks, 10), strconv.FormatInt(row.TotalScrolls, 10), strconv.Itoa(row.PagesVisited),
			row.DeviceType, row.OS, row.Browser, row.Country, row.City,
		}
		if err := cw.Write(record); err != nil {
			logging.Error().Err(err).Msg("failed to write CSV row")
			return
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Error().Err(err).Msg("failed to flush CSV export")
	}
}
