// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/eventlens/eventlens/internal/models"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return at })

	entry := r.Register("conn-1")
	if entry.ConnID != "conn-1" {
		t.Errorf("conn id = %q, want conn-1", entry.ConnID)
	}
	if !entry.ConnectedAt.Equal(at) || !entry.LastActivity.Equal(at) {
		t.Errorf("timestamps = %v/%v, want %v", entry.ConnectedAt, entry.LastActivity, at)
	}

	got, ok := r.Get("conn-1")
	if !ok {
		t.Fatal("Get() after Register() returned false")
	}
	if got.ConnID != "conn-1" {
		t.Errorf("got conn id = %q, want conn-1", got.ConnID)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestAttachIdentityAndSetRoom(t *testing.T) {
	r := New()
	r.Register("conn-1")

	r.AttachIdentity("conn-1", "sess-1", &models.Identity{UserID: "alice"})
	r.SetRoom("conn-1", "event-1")

	got, _ := r.Get("conn-1")
	if got.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", got.SessionID)
	}
	if got.Identity == nil || got.Identity.UserID != "alice" {
		t.Errorf("identity = %+v, want alice", got.Identity)
	}
	if got.Room != "event-1" {
		t.Errorf("room = %q, want event-1", got.Room)
	}

	// Mutators on unknown ids are silent no-ops.
	r.AttachIdentity("ghost", "s", nil)
	r.SetRoom("ghost", "e")
	r.Touch("ghost")
	if r.Len() != 1 {
		t.Errorf("Len() = %d after unknown-id mutators, want 1", r.Len())
	}
}

func TestTouchAdvancesLastActivity(t *testing.T) {
	r := New()
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return at })
	r.Register("conn-1")

	later := at.Add(30 * time.Second)
	r.SetClock(func() time.Time { return later })
	r.Touch("conn-1")

	got, _ := r.Get("conn-1")
	if !got.LastActivity.Equal(later) {
		t.Errorf("last activity = %v, want %v", got.LastActivity, later)
	}
	if !got.ConnectedAt.Equal(at) {
		t.Errorf("connected at moved: %v, want %v", got.ConnectedAt, at)
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Register("conn-1")
	r.SetRoom("conn-1", "event-1")

	entry, ok := r.Remove("conn-1")
	if !ok {
		t.Fatal("Remove() = false for known id")
	}
	if entry.Room != "event-1" {
		t.Errorf("removed entry room = %q, want event-1", entry.Room)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after remove, want 0", r.Len())
	}

	if _, ok := r.Remove("conn-1"); ok {
		t.Error("Remove() = true for already-removed id")
	}
}

func TestRemoveIfInactiveSince(t *testing.T) {
	r := New()
	at := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	r.SetClock(func() time.Time { return at })
	r.Register("stale")
	r.Register("busy")

	// "busy" showed activity after the cutoff was computed; it must survive
	// the sweep even though it looked stale in an earlier snapshot.
	r.SetClock(func() time.Time { return at.Add(10 * time.Minute) })
	r.Touch("busy")

	cutoff := at.Add(5 * time.Minute)

	if _, ok := r.RemoveIfInactiveSince("busy", cutoff); ok {
		t.Error("RemoveIfInactiveSince() removed a connection active after the cutoff")
	}
	if _, ok := r.Get("busy"); !ok {
		t.Error("busy connection missing after guarded remove")
	}

	entry, ok := r.RemoveIfInactiveSince("stale", cutoff)
	if !ok {
		t.Fatal("RemoveIfInactiveSince() = false for stale connection")
	}
	if entry.ConnID != "stale" {
		t.Errorf("removed conn id = %q, want stale", entry.ConnID)
	}
	if _, ok := r.Get("stale"); ok {
		t.Error("stale connection still present after guarded remove")
	}

	if _, ok := r.RemoveIfInactiveSince("ghost", cutoff); ok {
		t.Error("RemoveIfInactiveSince() = true for unknown id")
	}
}

func TestListByRoom(t *testing.T) {
	r := New()
	for _, c := range []struct{ conn, room string }{
		{"a", "event-1"}, {"b", "event-1"}, {"c", "event-2"}, {"d", ""},
	} {
		r.Register(c.conn)
		if c.room != "" {
			r.SetRoom(c.conn, c.room)
		}
	}

	got := r.ListByRoom("event-1")
	if len(got) != 2 {
		t.Fatalf("room members = %d, want 2", len(got))
	}
	seen := map[string]bool{}
	for _, e := range got {
		seen[e.ConnID] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("room members = %v, want a and b", seen)
	}

	if got := r.ListByRoom("event-9"); len(got) != 0 {
		t.Errorf("unknown room members = %d, want 0", len(got))
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	r := New()
	r.Register("conn-1")

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot size = %d, want 1", len(snap))
	}
	snap[0].Room = "mutated"

	got, _ := r.Get("conn-1")
	if got.Room != "" {
		t.Error("mutating a snapshot copy leaked into the registry")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			r.Register(id)
			r.Touch(id)
			r.SetRoom(id, "event-1")
			r.ListByRoom("event-1")
			r.Snapshot()
		}(i)
	}
	wg.Wait()

	if r.Len() == 0 {
		t.Error("registry empty after concurrent registration")
	}
}
