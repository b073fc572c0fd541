// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package models

import (
	"time"

	"github.com/google/uuid"
)

// Interaction actions recorded in cursor samples.
const (
	ActionMove   = "move"
	ActionClick  = "click"
	ActionHover  = "hover"
	ActionScroll = "scroll"
	ActionFocus  = "focus"
	ActionBlur   = "blur"
)

// ValidActions lists every accepted cursor sample action.
var ValidActions = []string{ActionMove, ActionClick, ActionHover, ActionScroll, ActionFocus, ActionBlur}

// Identity describes an authenticated attendee. A nil *Identity means the
// session is anonymous; display fields are only present when authenticated.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// DeviceInfo is a device descriptor captured at session start and refreshed
// if the client resends it.
type DeviceInfo struct {
	Type             string `json:"type,omitempty"` // desktop, mobile, tablet
	OS               string `json:"os,omitempty"`
	Browser          string `json:"browser,omitempty"`
	ScreenResolution string `json:"screen_resolution,omitempty"`
}

// GeoInfo is the resolved location snapshot captured at session start.
type GeoInfo struct {
	Country  string `json:"country,omitempty"`
	Region   string `json:"region,omitempty"`
	City     string `json:"city,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ClientContext is the context snapshot a client supplies when joining.
type ClientContext struct {
	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	Device    DeviceInfo `json:"device,omitempty"`
	Location  GeoInfo    `json:"location,omitempty"`
}

// SessionLog is one tracking session: one browser context visiting one
// event. At most one row per (session_id, event_id) pair is active at any
// time; a new row is created once the previous one is closed.
type SessionLog struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	EventID   string    `json:"event_id"`
	UserID    *string   `json:"user_id,omitempty"` // nil = anonymous

	UserAgent string     `json:"user_agent,omitempty"`
	IPAddress string     `json:"ip_address,omitempty"`
	Device    DeviceInfo `json:"device"`
	Location  GeoInfo    `json:"location"`

	StartTime    time.Time  `json:"start_time"`
	LastActivity time.Time  `json:"last_activity"`
	IsActive     bool       `json:"is_active"`
	EndTime      *time.Time `json:"end_time,omitempty"`

	// DurationSeconds is computed once on close (end_time - start_time)
	// and is unset while the session is active.
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`

	TotalClicks  int64 `json:"total_clicks"`
	TotalScrolls int64 `json:"total_scrolls"`
}

// CursorSample is one raw interaction sample. The per-session buffer is
// capped; old samples roll off once the cap is reached.
type CursorSample struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
	Page      string    `json:"page"`
	Element   string    `json:"element,omitempty"`
	Action    string    `json:"action"`
}

// HeatmapClick is one click recorded for heatmap aggregation.
type HeatmapClick struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Page      string    `json:"page"`
	Timestamp time.Time `json:"timestamp"`
}

// HeatmapHover is one dwell recorded for hover heatmaps.
type HeatmapHover struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	DurationMS int64     `json:"duration_ms"`
	Page       string    `json:"page"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScrollDepthEntry holds the maximum scroll depth seen for one page of a
// session. Updates merge with MAX, never append.
type ScrollDepthEntry struct {
	Page        string    `json:"page"`
	MaxDepthPct float64   `json:"max_depth_pct"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PageVisit accumulates total time spent on one page of a session.
type PageVisit struct {
	Page             string    `json:"page"`
	TimeSpentSeconds float64   `json:"time_spent_seconds"`
	UpdatedAt        time.Time `json:"updated_at"`
}
