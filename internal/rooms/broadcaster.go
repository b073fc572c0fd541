// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package rooms groups live connections by event and relays messages
// between members of the same room. Room membership is the fan-out
// topology only; session state lives in the registry and the store.
package rooms

import (
	"sync"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
)

// Sender is the write side of one live connection. TrySend must not block:
// it reports false when the peer's buffer is full and the message was
// dropped (acceptable for presence and cursor data).
type Sender interface {
	ConnID() string
	PeerSessionID() string
	TrySend(msg models.ServerMessage) bool
}

// member pairs a sender with its room for reverse lookup.
type member struct {
	sender Sender
	room   string
}

// Broadcaster maintains per-event rooms and fans messages out to their
// members. All mutations of a room's member set are serialized under one
// mutex so join/leave never lose updates or miscount presence.
type Broadcaster struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]Sender // eventID -> connID -> sender
	members map[string]member            // connID -> membership
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		rooms:   make(map[string]map[string]Sender),
		members: make(map[string]member),
	}
}

// Join adds a connection to the room for eventID. If the connection
// already belongs to a different room it leaves that room first, emitting
// the departure notice and updated count to its old peers before any
// join-side message is sent. Joining the same room twice is idempotent.
func (b *Broadcaster) Join(sender Sender, eventID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	connID := sender.ConnID()
	if current, ok := b.members[connID]; ok {
		if current.room == eventID {
			return
		}
		b.leaveLocked(connID, current)
	}

	room := b.rooms[eventID]
	if room == nil {
		room = make(map[string]Sender)
		b.rooms[eventID] = room
	}
	room[connID] = sender
	b.members[connID] = member{sender: sender, room: eventID}

	b.emitRoomCountLocked(eventID)
	metrics.RoomSize.WithLabelValues(eventID).Set(float64(len(room)))
}

// Leave removes a connection from its current room, notifying the
// remaining members. Unknown connections are a no-op.
func (b *Broadcaster) Leave(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.members[connID]
	if !ok {
		return
	}
	b.leaveLocked(connID, current)
}

// leaveLocked removes connID from its room, emits peer-left to the
// remaining members and a room-count update, and deletes empty rooms.
// Must be called with b.mu held.
func (b *Broadcaster) leaveLocked(connID string, current member) {
	delete(b.members, connID)

	room, ok := b.rooms[current.room]
	if !ok {
		return
	}
	delete(room, connID)

	if len(room) == 0 {
		delete(b.rooms, current.room)
		metrics.RoomSize.DeleteLabelValues(current.room)
		return
	}

	left := models.ServerMessage{
		Type: models.MessageTypePeerLeft,
		Data: models.PeerLeftData{SessionID: current.sender.PeerSessionID()},
	}
	for _, peer := range room {
		if !peer.TrySend(left) {
			logging.Warn().Str("conn_id", peer.ConnID()).Msg("dropped peer-left, send buffer full")
		}
	}

	b.emitRoomCountLocked(current.room)
	metrics.RoomSize.WithLabelValues(current.room).Set(float64(len(room)))
}

// emitRoomCountLocked sends the current count to every member of the room,
// including whoever just joined. Must be called with b.mu held.
func (b *Broadcaster) emitRoomCountLocked(eventID string) {
	room := b.rooms[eventID]
	count := models.ServerMessage{
		Type: models.MessageTypeRoomCount,
		Data: models.RoomCountData{EventID: eventID, Count: len(room)},
	}
	for _, peer := range room {
		if !peer.TrySend(count) {
			metrics.WSMessagesDropped.WithLabelValues("send_buffer_full").Inc()
		}
	}
}

// Broadcast sends msg to every member of eventID's room except
// excludeConnID. Pass "" to reach all members.
func (b *Broadcaster) Broadcast(eventID, excludeConnID string, msg models.ServerMessage) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for connID, peer := range b.rooms[eventID] {
		if connID == excludeConnID {
			continue
		}
		if !peer.TrySend(msg) {
			metrics.WSMessagesDropped.WithLabelValues("send_buffer_full").Inc()
		}
	}
}

// RoomSize returns the live member count for eventID's room.
func (b *Broadcaster) RoomSize(eventID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[eventID])
}

// RoomOf returns the room a connection currently belongs to, "" if none.
func (b *Broadcaster) RoomOf(connID string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.members[connID].room
}
