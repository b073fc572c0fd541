// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package ingest

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/validation"
	ws "github.com/eventlens/eventlens/internal/websocket"
)

// wsHandler handles one decoded message kind for one client. Handlers run
// on the client's read goroutine, so messages from a single connection are
// processed strictly in arrival order.
type wsHandler func(c *ws.Client, raw json.RawMessage)

// HandleMessage dispatches a frame to its kind's handler. Unknown kinds get
// a client-visible error; a bad message never breaks the connection's
// subsequent messages.
func (p *Pipeline) HandleMessage(c *ws.Client, msg models.ClientMessage) {
	handler, ok := p.handlers[msg.Type]
	if !ok {
		metrics.WSMessagesDropped.WithLabelValues("unknown_type").Inc()
		p.sendError(c, "unknown message type: "+msg.Type)
		return
	}
	handler(c, msg.Data)
}

// HandleDisconnect tears down all state for a closed connection: leaves its
// room, closes its session, and removes the registry entry. Safe to call
// for a connection that was never registered.
func (p *Pipeline) HandleDisconnect(connID string) {
	entry, ok := p.registry.Remove(connID)
	if !ok {
		return
	}

	p.rooms.Leave(connID)

	if entry.SessionID != "" && entry.Room != "" {
		sessionID, eventID := entry.SessionID, entry.Room
		p.persist("close_session", func(ctx context.Context) error {
			_, err := p.store.CloseSession(ctx, sessionID, eventID, p.now())
			return err
		})
	}

	logging.Debug().
		Str("conn_id", connID).
		Str("session_id", entry.SessionID).
		Str("event_id", entry.Room).
		Msg("connection disconnected")
}

func (p *Pipeline) handleJoinRoom(c *ws.Client, raw json.RawMessage) {
	var payload models.JoinRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		p.sendError(c, "malformed join-room payload")
		return
	}
	if ve := validation.ValidateStruct(&payload); ve != nil {
		p.sendError(c, ve.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := p.checkEvent(ctx, payload.EventID); err != nil {
		p.sendError(c, err.Error())
		return
	}

	connID := c.ConnID()
	c.SetSessionID(payload.SessionID)
	p.registry.AttachIdentity(connID, payload.SessionID, payload.Identity)

	// Join handles the implicit leave of any previous room, notifying its
	// peers before any message for the new room goes out.
	p.rooms.Join(c, payload.EventID)
	p.registry.SetRoom(connID, payload.EventID)
	p.registry.Touch(connID)

	p.rooms.Broadcast(payload.EventID, connID, models.ServerMessage{
		Type: models.MessageTypePeerJoined,
		Data: models.PeerJoinedData{SessionID: payload.SessionID, Identity: payload.Identity},
	})

	// Participant roster goes to the joining client only, never broadcast.
	var participants []models.Participant
	for _, entry := range p.registry.ListByRoom(payload.EventID) {
		if entry.ConnID == connID || entry.SessionID == "" {
			continue
		}
		participants = append(participants, models.Participant{
			SessionID:   entry.SessionID,
			Identity:    entry.Identity,
			ConnectedAt: entry.ConnectedAt,
		})
	}
	c.TrySend(models.ServerMessage{
		Type: models.MessageTypeRoomJoined,
		Data: models.RoomJoinedData{
			EventID:      payload.EventID,
			Count:        p.rooms.RoomSize(payload.EventID),
			Participants: participants,
		},
	})

	var userID *string
	if payload.Identity != nil {
		userID = &payload.Identity.UserID
	}
	sessionID, eventID, cc := payload.SessionID, payload.EventID, payload.Context
	p.persist("start_session", func(ctx context.Context) error {
		_, err := p.store.StartOrResume(ctx, sessionID, eventID, userID, cc)
		return err
	})
}

func (p *Pipeline) handleCursorSample(c *ws.Client, raw json.RawMessage) {
	var payload models.CursorSamplePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		p.sendError(c, "malformed cursor-sample payload")
		return
	}
	if ve := validation.ValidateStruct(&payload); ve != nil {
		p.sendError(c, ve.Error())
		return
	}

	connID := c.ConnID()

	// A sample for a room the connection is not in is dropped silently;
	// the client may be mid-transition between rooms.
	if p.rooms.RoomOf(connID) != payload.EventID {
		metrics.WSMessagesDropped.WithLabelValues("not_in_room").Inc()
		return
	}

	p.registry.Touch(connID)

	var identity *models.Identity
	if entry, ok := p.registry.Get(connID); ok {
		identity = entry.Identity
	}

	p.relay(payload, identity, connID)
	p.ingestSample(payload)
}

func (p *Pipeline) handleEndSession(c *ws.Client, raw json.RawMessage) {
	var payload models.EndSessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		p.sendError(c, "malformed end-session payload")
		return
	}
	if ve := validation.ValidateStruct(&payload); ve != nil {
		p.sendError(c, ve.Error())
		return
	}

	sessionID, eventID := payload.SessionID, payload.EventID
	p.persist("close_session", func(ctx context.Context) error {
		_, err := p.store.CloseSession(ctx, sessionID, eventID, p.now())
		return err
	})
}

func (p *Pipeline) sendError(c *ws.Client, message string) {
	if !c.TrySend(models.ServerMessage{
		Type: models.MessageTypeError,
		Data: models.ErrorData{Message: message},
	}) {
		metrics.WSMessagesDropped.WithLabelValues("send_buffer_full").Inc()
	}
}
