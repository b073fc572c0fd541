// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package reconciler

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/registry"
	"github.com/eventlens/eventlens/internal/rooms"
)

func TestMain(m *testing.M) {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
	os.Exit(m.Run())
}

type closeCall struct {
	sessionID string
	eventID   string
	endTime   time.Time
}

// fakeCloser records close calls; failFor makes CloseSession fail for one
// session id.
type fakeCloser struct {
	mu          sync.Mutex
	closes      []closeCall
	staleCutoff time.Time
	staleRows   int64
	failFor     string
}

func (f *fakeCloser) CloseSession(_ context.Context, sessionID, eventID string, endTime time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID == f.failFor {
		return false, errors.New("close failed")
	}
	f.closes = append(f.closes, closeCall{sessionID: sessionID, eventID: eventID, endTime: endTime})
	return true, nil
}

func (f *fakeCloser) CloseStaleSessions(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.staleCutoff = cutoff
	return f.staleRows, nil
}

type noopSender struct {
	connID    string
	sessionID string
}

func (s noopSender) ConnID() string                    { return s.connID }
func (s noopSender) PeerSessionID() string             { return s.sessionID }
func (s noopSender) TrySend(models.ServerMessage) bool { return true }

// join wires one connection into both the registry and the broadcaster the
// way the live join path does.
func join(reg *registry.Registry, b *rooms.Broadcaster, connID, sessionID, eventID string) {
	reg.Register(connID)
	reg.AttachIdentity(connID, sessionID, nil)
	b.Join(noopSender{connID: connID, sessionID: sessionID}, eventID)
	reg.SetRoom(connID, eventID)
}

func TestSweepClosesStaleConnections(t *testing.T) {
	reg := registry.New()
	b := rooms.NewBroadcaster()
	store := &fakeCloser{}
	s := NewSweeper(reg, b, store, time.Minute, 5*time.Minute)

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.SetClock(func() time.Time { return t0 })
	join(reg, b, "conn-stale", "sess-stale", "event-1")

	// Second member joins much later and stays fresh.
	t1 := t0.Add(10 * time.Minute)
	reg.SetClock(func() time.Time { return t1 })
	join(reg, b, "conn-fresh", "sess-fresh", "event-1")

	s.SetClock(func() time.Time { return t1 })
	s.Sweep(context.Background())

	if _, ok := reg.Get("conn-stale"); ok {
		t.Error("stale connection still registered after sweep")
	}
	if _, ok := reg.Get("conn-fresh"); !ok {
		t.Error("fresh connection removed by sweep")
	}
	if got := b.RoomSize("event-1"); got != 1 {
		t.Errorf("room size = %d after sweep, want 1", got)
	}

	if len(store.closes) != 1 {
		t.Fatalf("close calls = %d, want 1", len(store.closes))
	}
	call := store.closes[0]
	if call.sessionID != "sess-stale" || call.eventID != "event-1" {
		t.Errorf("closed %s/%s, want sess-stale/event-1", call.sessionID, call.eventID)
	}
	// The session ends at its last observed activity, not at sweep time.
	if !call.endTime.Equal(t0) {
		t.Errorf("close end time = %v, want last activity %v", call.endTime, t0)
	}
}

func TestSweepLeavesActiveConnectionsAlone(t *testing.T) {
	reg := registry.New()
	b := rooms.NewBroadcaster()
	store := &fakeCloser{}
	s := NewSweeper(reg, b, store, time.Minute, 5*time.Minute)

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.SetClock(func() time.Time { return t0 })
	join(reg, b, "conn-1", "sess-1", "event-1")

	// Activity just before the sweep keeps the connection alive.
	t1 := t0.Add(10 * time.Minute)
	reg.SetClock(func() time.Time { return t1 })
	reg.Touch("conn-1")

	s.SetClock(func() time.Time { return t1 })
	s.Sweep(context.Background())

	if _, ok := reg.Get("conn-1"); !ok {
		t.Error("active connection removed by sweep")
	}
	if len(store.closes) != 0 {
		t.Errorf("close calls = %d for active connection, want 0", len(store.closes))
	}
}

func TestSweepIsolatesPerEntryFailures(t *testing.T) {
	reg := registry.New()
	b := rooms.NewBroadcaster()
	store := &fakeCloser{failFor: "sess-bad"}
	s := NewSweeper(reg, b, store, time.Minute, 5*time.Minute)

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.SetClock(func() time.Time { return t0 })
	join(reg, b, "conn-bad", "sess-bad", "event-1")
	join(reg, b, "conn-good", "sess-good", "event-1")

	s.SetClock(func() time.Time { return t0.Add(10 * time.Minute) })
	s.Sweep(context.Background())

	// The failing entry must not abort the rest of the sweep.
	if len(store.closes) != 1 || store.closes[0].sessionID != "sess-good" {
		t.Errorf("close calls = %v, want sess-good closed despite sess-bad failing", store.closes)
	}
	if reg.Len() != 0 {
		t.Errorf("registry size = %d after sweep, want 0", reg.Len())
	}
}

func TestSweepSkipsUnjoinedConnections(t *testing.T) {
	reg := registry.New()
	b := rooms.NewBroadcaster()
	store := &fakeCloser{}
	s := NewSweeper(reg, b, store, time.Minute, 5*time.Minute)

	t0 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	reg.SetClock(func() time.Time { return t0 })
	reg.Register("conn-idle") // connected, never joined a room

	s.SetClock(func() time.Time { return t0.Add(10 * time.Minute) })
	s.Sweep(context.Background())

	if _, ok := reg.Get("conn-idle"); ok {
		t.Error("stale unjoined connection still registered")
	}
	if len(store.closes) != 0 {
		t.Errorf("close calls = %d for unjoined connection, want 0", len(store.closes))
	}
}

func TestSweepClosesStaleStoreRows(t *testing.T) {
	reg := registry.New()
	store := &fakeCloser{staleRows: 3}
	s := NewSweeper(reg, rooms.NewBroadcaster(), store, time.Minute, 5*time.Minute)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	s.Sweep(context.Background())

	want := now.Add(-5 * time.Minute)
	if !store.staleCutoff.Equal(want) {
		t.Errorf("stale row cutoff = %v, want %v", store.staleCutoff, want)
	}
}
