// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package ingest is the ingestion pipeline: every interaction event enters
// here, from the real-time channel or the REST surface, and fans out to the
// room broadcaster and the session store. Broadcast and persistence are
// independent failure domains; a store outage never blocks peer relay.
package ingest
