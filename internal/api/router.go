// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

// Package api provides HTTP routing and handlers using the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventlens/eventlens/internal/config"
	"github.com/eventlens/eventlens/internal/database"
	"github.com/eventlens/eventlens/internal/ingest"
	"github.com/eventlens/eventlens/internal/middleware"
	"github.com/eventlens/eventlens/internal/registry"
)

// Router assembles the HTTP surface.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter builds the router from its dependencies.
func NewRouter(cfg *config.Config, db *database.DB, pipeline *ingest.Pipeline, reg *registry.Registry) *Router {
	return &Router{
		handler: NewHandler(cfg, db, pipeline, reg),
		chiMiddleware: NewChiMiddleware(&ChiMiddlewareConfig{
			CORSAllowedOrigins: cfg.Security.CORSOrigins,
			RateLimitRequests:  cfg.Security.RateLimitReqs,
			RateLimitWindow:    cfg.Security.RateLimitWindow,
			RateLimitDisabled:  cfg.Security.RateLimitDisabled,
		}),
	}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Tracking ingestion: the REST mirror of the real-time channel.
	r.Route("/api/v1/tracking", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)

		r.Post("/start", router.handler.TrackingStart)
		r.Post("/cursor", router.handler.TrackingCursor)
		r.Post("/click", router.handler.TrackingClick)
		r.Post("/hover", router.handler.TrackingHover)
		r.Post("/scroll", router.handler.TrackingScroll)
		r.Post("/pagevisit", router.handler.TrackingPageVisit)
		r.Post("/end", router.handler.TrackingEnd)
	})

	// Read-side analytics for dashboards.
	r.Route("/api/v1/events/{eventID}", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAnalytics())
		r.Use(middleware.PrometheusMetrics)

		r.Get("/sessions/active", router.handler.ActiveSessions)
		r.Get("/analytics", router.handler.SessionAnalytics)
		r.Get("/analytics/heatmap", router.handler.Heatmap)
		r.Get("/analytics/devices", router.handler.DeviceDistribution)
		r.Get("/analytics/hourly", router.handler.HourlyDistribution)
		r.Get("/analytics/export", router.handler.Export)
	})

	// Real-time channel entry point.
	r.Get("/api/v1/ws", router.handler.WebSocket)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
