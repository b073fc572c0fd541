// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package reconciler

import (
	"context"
	"time"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
)

// purgeInterval is how often the retention horizon is enforced. Retention
// is measured in days, so a few passes per day is plenty.
const purgeInterval = 6 * time.Hour

// RetentionStore is the slice of the session store the purger needs.
// Satisfied by *database.DB.
type RetentionStore interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Purger deletes session logs older than the retention horizon.
// Implements suture.Service.
type Purger struct {
	store         RetentionStore
	retentionDays int
	now           func() time.Time
}

// NewPurger creates a purger enforcing the given retention in days.
func NewPurger(store RetentionStore, retentionDays int) *Purger {
	return &Purger{
		store:         store,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// SetClock overrides the purger clock. Intended for tests.
func (p *Purger) SetClock(now func() time.Time) {
	p.now = now
}

// Serve implements suture.Service. One purge runs at startup, then on a
// fixed interval until the context is canceled.
func (p *Purger) Serve(ctx context.Context) error {
	p.Purge(ctx)

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Purge(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (p *Purger) String() string {
	return "retention-purger"
}

// Purge runs one retention pass.
func (p *Purger) Purge(ctx context.Context) {
	horizon := p.now().AddDate(0, 0, -p.retentionDays)

	purged, err := p.store.PurgeExpired(ctx, horizon)
	if err != nil {
		logging.Error().Err(err).Msg("retention purge failed")
		return
	}

	metrics.SessionsPurged.Add(float64(purged))
	if purged > 0 {
		logging.Info().
			Int64("sessions", purged).
			Time("horizon", horizon).
			Msg("purged expired session logs")
	}
}
