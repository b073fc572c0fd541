// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/eventlens/eventlens/internal/ingest"
	"github.com/eventlens/eventlens/internal/models"
)

// TrackingStart starts or resumes a tracking session. At most one active
// session exists per (session_id, event_id) pair; starting an already
// active pair returns the existing row.
func (h *Handler) TrackingStart(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var payload models.JoinRoomPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	log, err := h.pipeline.StartSession(r.Context(), payload.EventID, payload.SessionID, payload.Identity, payload.Context)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, log, started)
}

// TrackingCursor records one interaction sample with an explicit action.
func (h *Handler) TrackingCursor(w http.ResponseWriter, r *http.Request) {
	h.recordInteraction(w, r, "")
}

// TrackingClick records a click.
func (h *Handler) TrackingClick(w http.ResponseWriter, r *http.Request) {
	h.recordInteraction(w, r, models.ActionClick)
}

// TrackingHover records a hover dwell.
func (h *Handler) TrackingHover(w http.ResponseWriter, r *http.Request) {
	h.recordInteraction(w, r, models.ActionHover)
}

// TrackingScroll records a scroll depth sample.
func (h *Handler) TrackingScroll(w http.ResponseWriter, r *http.Request) {
	h.recordInteraction(w, r, models.ActionScroll)
}

// recordInteraction is shared by the per-action tracking endpoints. When
// forceAction is set the route determines the action, overriding the body.
func (h *Handler) recordInteraction(w http.ResponseWriter, r *http.Request, forceAction string) {
	started := time.Now()

	var payload models.CursorSamplePayload
	if forceAction != "" {
		// The action field is implied by the route; fill it before
		// validation so clients can omit it.
		payload.Action = forceAction
	}
	if !decodeAndValidate(w, r, &payload) {
		return
	}
	if forceAction != "" {
		payload.Action = forceAction
	}

	if err := h.pipeline.RecordInteraction(r.Context(), payload); err != nil {
		h.respondPipelineError(w, err)
		return
	}

	respondSuccess(w, http.StatusAccepted, map[string]string{"recorded": payload.Action}, started)
}

// TrackingPageVisit accumulates time spent on a page.
func (h *Handler) TrackingPageVisit(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var payload models.PageVisitPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	if err := h.pipeline.RecordPageVisit(r.Context(), payload.EventID, payload.SessionID, payload.Page, payload.TimeSpentSeconds); err != nil {
		h.respondPipelineError(w, err)
		return
	}

	respondSuccess(w, http.StatusAccepted, map[string]string{"recorded": "page-visit"}, started)
}

// TrackingEnd closes a session. Idempotent: ending an already-closed or
// unknown session reports success.
func (h *Handler) TrackingEnd(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var payload models.EndSessionPayload
	if !decodeAndValidate(w, r, &payload) {
		return
	}

	if err := h.pipeline.EndSession(r.Context(), payload.EventID, payload.SessionID); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to end session", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]string{"status": "ended"}, started)
}

func (h *Handler) respondPipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrEventNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "event not found", nil)
	case errors.Is(err, ingest.ErrOracleUnavailable):
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "event lookup unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to record tracking data", err)
	}
}
