// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package registry tracks live transport connections in memory. It is the
// source of truth for "who is connected right now". Entries are never
// persisted; a process restart is equivalent to every client disconnecting
// and rejoining.
package registry

import (
	"sync"
	"time"

	"github.com/eventlens/eventlens/internal/models"
)

// Entry is the in-memory state for one live connection. Fields are owned by
// the Registry; callers receive copies and must mutate through Registry
// methods only.
type Entry struct {
	ConnID       string
	SessionID    string
	Identity     *models.Identity
	Room         string // current event room, "" = none
	ConnectedAt  time.Time
	LastActivity time.Time
}

// Registry is a process-local map from connection id to Entry. All access
// is serialized through its methods; an RWMutex favors the read-heavy
// lookup pattern of the relay path.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// SetClock overrides the registry clock. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Register adds a new connection and returns a copy of its entry.
// Registering an id that already exists replaces the previous entry; the
// transport guarantees unique ids so this only happens on id reuse after
// an unnoticed disconnect.
func (r *Registry) Register(connID string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry := &Entry{
		ConnID:       connID,
		ConnectedAt:  now,
		LastActivity: now,
	}
	r.entries[connID] = entry
	return *entry
}

// AttachIdentity associates a verified identity (or nil for anonymous) and
// the client session id with a connection. No-op for unknown ids.
func (r *Registry) AttachIdentity(connID, sessionID string, identity *models.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[connID]; ok {
		entry.SessionID = sessionID
		entry.Identity = identity
	}
}

// SetRoom records the event room a connection currently belongs to.
// Pass "" to clear. No-op for unknown ids.
func (r *Registry) SetRoom(connID, eventID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[connID]; ok {
		entry.Room = eventID
	}
}

// Touch updates a connection's last-activity time. No-op for unknown ids.
func (r *Registry) Touch(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[connID]; ok {
		entry.LastActivity = r.now()
	}
}

// Remove deletes a connection and returns a copy of its final entry.
// Removing an unknown id is a no-op and returns (Entry{}, false).
func (r *Registry) Remove(connID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[connID]
	if !ok {
		return Entry{}, false
	}
	delete(r.entries, connID)
	return *entry, true
}

// RemoveIfInactiveSince atomically removes a connection only if its
// last-activity time is still older than cutoff. The reconciler uses this
// so a connection that became active again mid-sweep is left alone.
func (r *Registry) RemoveIfInactiveSince(connID string, cutoff time.Time) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[connID]
	if !ok || !entry.LastActivity.Before(cutoff) {
		return Entry{}, false
	}
	delete(r.entries, connID)
	return *entry, true
}

// Get returns a copy of the entry for connID.
func (r *Registry) Get(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[connID]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// ListByRoom returns copies of every entry currently in the given room.
// O(n) over live connections; room sizes dwarf total connection counts in
// practice so no secondary index is kept.
func (r *Registry) ListByRoom(eventID string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, entry := range r.entries {
		if entry.Room == eventID {
			out = append(out, *entry)
		}
	}
	return out
}

// Snapshot returns copies of all entries. Used by the reconciler sweep so
// it can iterate without holding the registry lock.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		out = append(out, *entry)
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
