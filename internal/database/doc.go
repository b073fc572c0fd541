// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package database is the DuckDB-backed session log store. It owns the
// schema, the session lifecycle writes issued by the ingestion pipeline and
// the reconciler, and the read-side aggregation queries behind the
// analytics endpoints.
package database
