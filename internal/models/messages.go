// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Client-to-server message kinds.
const (
	MessageTypeJoinRoom     = "join-room"
	MessageTypeCursorSample = "cursor-sample"
	MessageTypeEndSession   = "end-session"
	MessageTypePing         = "ping"
)

// Server-to-client message kinds.
const (
	MessageTypeRoomJoined  = "room-joined"
	MessageTypePeerJoined  = "peer-joined"
	MessageTypePeerLeft    = "peer-left"
	MessageTypeRoomCount   = "room-count"
	MessageTypeCursorRelay = "cursor-relay"
	MessageTypeError       = "error"
	MessageTypePong        = "pong"
)

// ClientMessage is the envelope for messages arriving over the real-time
// channel. Data is decoded per Type by the ingestion pipeline.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerMessage is the envelope for messages sent to clients.
type ServerMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// JoinRoomPayload carries a join-room request.
type JoinRoomPayload struct {
	EventID   string        `json:"event_id" validate:"required"`
	SessionID string        `json:"session_id" validate:"required"`
	Identity  *Identity     `json:"identity,omitempty"`
	Context   ClientContext `json:"context"`
}

// CursorSamplePayload carries one interaction sample from a client.
type CursorSamplePayload struct {
	EventID   string  `json:"event_id" validate:"required"`
	SessionID string  `json:"session_id" validate:"required"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Page      string  `json:"page" validate:"required"`
	Element   string  `json:"element,omitempty"`
	Action    string  `json:"action" validate:"required,oneof=move click hover scroll focus blur"`

	// DurationMS is the dwell time for hover actions.
	DurationMS int64 `json:"duration_ms,omitempty" validate:"min=0"`

	// DepthPct is the scroll depth percentage for scroll actions.
	DepthPct float64 `json:"depth_pct,omitempty" validate:"min=0,max=100"`
}

// PageVisitPayload carries one page-visit report from the REST surface.
// Time accumulates per page: repeated reports for the same page add up.
type PageVisitPayload struct {
	EventID          string  `json:"event_id" validate:"required"`
	SessionID        string  `json:"session_id" validate:"required"`
	Page             string  `json:"page" validate:"required"`
	TimeSpentSeconds float64 `json:"time_spent_seconds" validate:"min=0"`
}

// EndSessionPayload carries an explicit end-session request.
type EndSessionPayload struct {
	EventID   string `json:"event_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// Participant describes one existing room member, returned to a joining
// client only (never broadcast).
type Participant struct {
	SessionID   string    `json:"session_id"`
	Identity    *Identity `json:"identity,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// RoomJoinedData acknowledges a successful join to the caller.
type RoomJoinedData struct {
	EventID      string        `json:"event_id"`
	Count        int           `json:"count"`
	Participants []Participant `json:"participants"`
}

// PeerJoinedData notifies room peers that a session joined.
type PeerJoinedData struct {
	SessionID string    `json:"session_id"`
	Identity  *Identity `json:"identity,omitempty"`
}

// PeerLeftData notifies room peers that a session left.
type PeerLeftData struct {
	SessionID string `json:"session_id"`
}

// RoomCountData carries the live presence count for a room. Sent to every
// member, including the one that just joined or left.
type RoomCountData struct {
	EventID string `json:"event_id"`
	Count   int    `json:"count"`
}

// CursorRelayData is an interaction sample relayed to room peers.
type CursorRelayData struct {
	SessionID string    `json:"session_id"`
	Identity  *Identity `json:"identity,omitempty"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Page      string    `json:"page"`
	Element   string    `json:"element,omitempty"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorData carries a client-visible error signal.
type ErrorData struct {
	Message string `json:"message"`
}
