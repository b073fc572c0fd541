// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package ingest

import (
	"context"
	"time"

	"github.com/eventlens/eventlens/internal/models"
)

// SessionStore is the persistence surface the pipeline writes through. Each
// record method encapsulates every effect of one interaction kind (raw
// sample buffer, heatmap tables, counters, last-activity bump) so handlers
// stay a single call per event.
type SessionStore interface {
	// StartOrResume returns the active SessionLog for (sessionID, eventID),
	// creating one seeded from cc if none is active. Never creates a
	// duplicate active row for the pair.
	StartOrResume(ctx context.Context, sessionID, eventID string, userID *string, cc models.ClientContext) (*models.SessionLog, error)

	// AppendCursorSample appends a raw sample to the session's bounded
	// cursor buffer and bumps last-activity.
	AppendCursorSample(ctx context.Context, sessionID, eventID string, s models.CursorSample) error

	// RecordClick appends the raw sample, records a heatmap click, and
	// increments the session's click counter.
	RecordClick(ctx context.Context, sessionID, eventID string, s models.CursorSample) error

	// RecordHover appends the raw sample and records a hover dwell.
	RecordHover(ctx context.Context, sessionID, eventID string, s models.CursorSample, durationMS int64) error

	// RecordScroll appends the raw sample, max-merges the page's scroll
	// depth, and increments the session's scroll counter.
	RecordScroll(ctx context.Context, sessionID, eventID string, s models.CursorSample, depthPct float64) error

	// RecordPageVisit adds seconds to the page's accumulated time,
	// inserting the page on first visit.
	RecordPageVisit(ctx context.Context, sessionID, eventID, page string, seconds float64) error

	// CloseSession closes the active row for the pair, setting end time and
	// duration. Reports false with a nil error when no active row exists;
	// closing an already-closed session is not an error.
	CloseSession(ctx context.Context, sessionID, eventID string, endTime time.Time) (bool, error)
}
