// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package ingest

import "errors"

var (
	// ErrEventNotFound is returned when the event oracle reports that the
	// referenced event does not exist or is not joinable.
	ErrEventNotFound = errors.New("event not found")

	// ErrOracleUnavailable is returned when the event oracle itself failed;
	// the event may or may not exist.
	ErrOracleUnavailable = errors.New("event lookup unavailable")
)
