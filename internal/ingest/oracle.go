// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package ingest

import "context"

// EventOracle answers whether an event exists and is joinable. Event
// lifecycle is owned by an external system; this core only consults it
// before creating tracking state for an event id.
type EventOracle interface {
	EventExists(ctx context.Context, eventID string) (bool, error)
}

// AllowAllOracle accepts every event id. Used when no event service is
// wired in; the server logs a warning at startup when it is active.
type AllowAllOracle struct{}

// EventExists always reports true.
func (AllowAllOracle) EventExists(_ context.Context, _ string) (bool, error) {
	return true, nil
}
