// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRetentionStore struct {
	horizon time.Time
	purged  int64
	err     error
	calls   int
}

func (f *fakeRetentionStore) PurgeExpired(_ context.Context, before time.Time) (int64, error) {
	f.calls++
	f.horizon = before
	return f.purged, f.err
}

func TestPurgeUsesRetentionHorizon(t *testing.T) {
	store := &fakeRetentionStore{purged: 7}
	p := NewPurger(store, 90)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	p.SetClock(func() time.Time { return now })
	p.Purge(context.Background())

	want := now.AddDate(0, 0, -90)
	if !store.horizon.Equal(want) {
		t.Errorf("purge horizon = %v, want %v", store.horizon, want)
	}
	if store.calls != 1 {
		t.Errorf("purge calls = %d, want 1", store.calls)
	}
}

func TestPurgeSurvivesStoreFailure(t *testing.T) {
	store := &fakeRetentionStore{err: errors.New("db down")}
	p := NewPurger(store, 30)

	// Errors are logged, not propagated; the next tick retries.
	p.Purge(context.Background())

	if store.calls != 1 {
		t.Errorf("purge calls = %d, want 1", store.calls)
	}
}

func TestPurgerServePurgesAtStartup(t *testing.T) {
	store := &fakeRetentionStore{}
	p := NewPurger(store, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// With an already-canceled context Serve still runs its startup purge
	// before blocking on the ticker loop.
	if err := p.Serve(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() error = %v, want context.Canceled", err)
	}
	if store.calls != 1 {
		t.Errorf("purge calls = %d, want 1 startup purge", store.calls)
	}
}
