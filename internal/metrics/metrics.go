// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package metrics provides Prometheus instrumentation for EventLens:
// API endpoint latency and throughput, WebSocket connections and room
// presence, ingestion throughput and sampling decisions, store query
// performance, and reconciler sweeps.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlens_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlens_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventlens_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// WebSocket metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventlens_ws_connections",
			Help: "Number of live WebSocket connections",
		},
	)

	WSMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlens_ws_messages_dropped_total",
			Help: "Messages dropped before processing",
		},
		[]string{"reason"}, // "rate_limited", "malformed", "send_buffer_full"
	)

	RoomSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventlens_room_size",
			Help: "Live connection count per event room",
		},
		[]string{"event_id"},
	)

	// Ingestion metrics
	InteractionsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlens_interactions_ingested_total",
			Help: "Interaction events accepted by the ingestion pipeline",
		},
		[]string{"action"},
	)

	SamplesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventlens_samples_persisted_total",
			Help: "Interaction samples written to the session log store",
		},
		[]string{"action"},
	)

	SamplesSampledOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlens_samples_sampled_out_total",
			Help: "Move samples dropped by the sampling policy before persistence",
		},
	)

	PersistenceErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlens_persistence_errors_total",
			Help: "Failed session log writes (broadcast path unaffected)",
		},
	)

	// Store metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventlens_duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Reconciler metrics
	ReconcilerSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlens_reconciler_sweeps_total",
			Help: "Completed reconciler sweeps",
		},
	)

	ReconcilerStaleClosed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlens_reconciler_stale_closed_total",
			Help: "Stale connections closed by the reconciler",
		},
	)

	SessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventlens_sessions_purged_total",
			Help: "Session logs removed by the retention purger",
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, path, status string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAPIRequestCode is RecordAPIRequest with a numeric status code.
func RecordAPIRequestCode(method, path string, code int, duration time.Duration) {
	RecordAPIRequest(method, path, strconv.Itoa(code), duration)
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// ObserveQuery records the duration of one store operation.
func ObserveQuery(operation string, start time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
