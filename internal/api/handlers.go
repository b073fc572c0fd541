// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/ingest"
	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/registry"
	ws "github.com/eventlens/eventlens/internal/websocket"
)

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	cfg      *config.Config
	db       *database.DB
	pipeline *ingest.Pipeline
	registry *registry.Registry
}

// NewHandler creates the handler set.
func NewHandler(cfg *config.Config, db *database.DB, pipeline *ingest.Pipeline, reg *registry.Registry) *Handler {
	return &Handler{
		cfg:      cfg,
		db:       db,
		pipeline: pipeline,
		registry: reg,
	}
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin allows same-origin requests and any origin listed in
// the CORS configuration. "*" allows all.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades the connection and hands it to the ingestion pipeline.
// Session and room state is established by the join-room message, not here.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(conn, h.pipeline,
		h.cfg.Tracking.WSMessagesPerSecond, h.cfg.Tracking.WSMessageBurst)
	h.registry.Register(client.ConnID())
	client.Start()

	logging.Debug().Str("conn_id", client.ConnID()).Msg("websocket client connected")
}
