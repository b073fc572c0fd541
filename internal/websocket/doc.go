// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package websocket owns the wire side of live connections: the read and
// write pumps, heartbeat, per-connection rate limiting, and the non-blocking
// send buffer. Frame semantics live in the ingest pipeline, which plugs in
// through the MessageHandler interface.
package websocket
