// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package reconciler resolves divergence between live presence and
// persisted "active" state caused by ungraceful disconnects. The sweeper
// force-disconnects connections with no recent activity; the purger
// enforces the retention horizon on persisted session logs.
package reconciler

import (
	"context"
	"time"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/registry"
	"github.com/eventlens/eventlens/internal/rooms"
)

// SessionCloser is the slice of the session store the sweeper needs.
// Satisfied by *database.DB.
type SessionCloser interface {
	CloseSession(ctx context.Context, sessionID, eventID string, endTime time.Time) (bool, error)
	CloseStaleSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper periodically detects stale live connections and stale-but-active
// session rows and closes both, emitting the same departure notifications
// an explicit disconnect would. Implements suture.Service.
type Sweeper struct {
	registry *registry.Registry
	rooms    *rooms.Broadcaster
	store    SessionCloser

	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper that runs every interval and treats
// connections idle for longer than timeout as dead.
func NewSweeper(reg *registry.Registry, b *rooms.Broadcaster, store SessionCloser, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		registry: reg,
		rooms:    b,
		store:    store,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
	}
}

// SetClock overrides the sweeper clock. Intended for tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Serve implements suture.Service, sweeping on a fixed interval until the
// context is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "reconciler-sweeper"
}

// Sweep runs one pass. Each stale connection is handled like an explicit
// disconnect: leave its room, close its session, drop the registry entry.
// Failures are isolated per entry so one broken cleanup cannot abort the
// rest of the sweep.
func (s *Sweeper) Sweep(ctx context.Context) {
	metrics.ReconcilerSweeps.Inc()
	cutoff := s.now().Add(-s.timeout)

	var closed int64
	for _, entry := range s.registry.Snapshot() {
		if !entry.LastActivity.Before(cutoff) {
			continue
		}

		// Re-check under the registry lock: a connection that showed
		// activity after the snapshot was taken is left alone.
		entry, ok := s.registry.RemoveIfInactiveSince(entry.ConnID, cutoff)
		if !ok {
			continue
		}

		s.rooms.Leave(entry.ConnID)

		if entry.SessionID != "" && entry.Room != "" {
			if _, err := s.store.CloseSession(ctx, entry.SessionID, entry.Room, entry.LastActivity); err != nil {
				logging.Error().Err(err).
					Str("conn_id", entry.ConnID).
					Str("session_id", entry.SessionID).
					Msg("failed to close session for stale connection")
				continue
			}
		}

		closed++
		logging.Info().
			Str("conn_id", entry.ConnID).
			Str("session_id", entry.SessionID).
			Str("event_id", entry.Room).
			Time("last_activity", entry.LastActivity).
			Msg("closed stale connection")
	}

	// Rows that are still marked active with no live connection behind them
	// (e.g. after a process restart) are closed directly in the store.
	staleRows, err := s.store.CloseStaleSessions(ctx, cutoff)
	if err != nil {
		logging.Error().Err(err).Msg("failed to close stale session rows")
	}

	metrics.ReconcilerStaleClosed.Add(float64(closed + staleRows))
	if closed > 0 || staleRows > 0 {
		logging.Debug().
			Int64("stale_connections", closed).
			Int64("stale_rows", staleRows).
			Msg("reconciler sweep complete")
	}
}
