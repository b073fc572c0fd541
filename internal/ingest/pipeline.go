// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package ingest

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
	"github.com/eventlens/eventlens/internal/registry"
	"github.com/eventlens/eventlens/internal/rooms"
)

const persistTimeout = 5 * time.Second

// Pipeline routes interaction events to the room broadcaster and the
// session store. One instance serves both the real-time channel and the
// REST tracking surface.
type Pipeline struct {
	registry *registry.Registry
	rooms    *rooms.Broadcaster
	store    SessionStore
	oracle   EventOracle
	sample   SamplingPolicy
	breaker  *gobreaker.CircuitBreaker[interface{}]
	now      func() time.Time

	handlers map[string]wsHandler
}

// NewPipeline wires the pipeline against its collaborators. sample decides
// which move samples reach the store; NewRateSampler gives the production
// policy.
func NewPipeline(reg *registry.Registry, b *rooms.Broadcaster, store SessionStore, oracle EventOracle, sample SamplingPolicy) *Pipeline {
	p := &Pipeline{
		registry: reg,
		rooms:    b,
		store:    store,
		oracle:   oracle,
		sample:   sample,
		breaker:  newPersistenceBreaker(),
		now:      time.Now,
	}
	p.handlers = map[string]wsHandler{
		models.MessageTypeJoinRoom:     p.handleJoinRoom,
		models.MessageTypeCursorSample: p.handleCursorSample,
		models.MessageTypeEndSession:   p.handleEndSession,
	}
	return p
}

// SetClock overrides the pipeline clock. Intended for tests.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

func newPersistenceBreaker() *gobreaker.CircuitBreaker[interface{}] {
	settings := gobreaker.Settings{
		Name:        "sessionlog-persistence",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("persistence circuit breaker state change")
		},
	}
	return gobreaker.NewCircuitBreaker[interface{}](settings)
}

// persist runs one store write behind the circuit breaker. Failures are
// logged and counted, never returned to the broadcast path; the next sample
// simply tries again (or trips the breaker open).
func (p *Pipeline) persist(operation string, fn func(ctx context.Context) error) {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return nil, fn(ctx)
	})
	if err != nil {
		metrics.PersistenceErrors.Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Debug().Str("operation", operation).Msg("persistence skipped, circuit open")
			return
		}
		logging.Error().Err(err).Str("operation", operation).Msg("persistence failed")
	}
}

// StartSession validates the event and returns the active SessionLog for
// the pair, creating one if needed. Identity may be nil for anonymous
// sessions. Returns ErrEventNotFound for unknown events.
func (p *Pipeline) StartSession(ctx context.Context, eventID, sessionID string, identity *models.Identity, cc models.ClientContext) (*models.SessionLog, error) {
	if err := p.checkEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var userID *string
	if identity != nil {
		userID = &identity.UserID
	}
	return p.store.StartOrResume(ctx, sessionID, eventID, userID, cc)
}

// RecordInteraction ingests one interaction sample arriving over the REST
// surface. The sample is relayed to the event's live room (if one exists)
// and persisted per the sampling policy. The session row is created on
// first contact.
func (p *Pipeline) RecordInteraction(ctx context.Context, payload models.CursorSamplePayload) error {
	if err := p.checkEvent(ctx, payload.EventID); err != nil {
		return err
	}

	p.relay(payload, nil, "")
	p.ingestSample(payload)
	return nil
}

// RecordPageVisit accumulates time spent on a page for the session.
func (p *Pipeline) RecordPageVisit(ctx context.Context, eventID, sessionID, page string, seconds float64) error {
	if err := p.checkEvent(ctx, eventID); err != nil {
		return err
	}

	metrics.InteractionsIngested.WithLabelValues("page-visit").Inc()
	p.persist("page_visit", func(ctx context.Context) error {
		return p.store.RecordPageVisit(ctx, sessionID, eventID, page, seconds)
	})
	return nil
}

// EndSession closes the active SessionLog for the pair. Idempotent: closing
// an already-closed or unknown session succeeds, since the caller's intent
// is already satisfied.
func (p *Pipeline) EndSession(ctx context.Context, eventID, sessionID string) error {
	closed, err := p.store.CloseSession(ctx, sessionID, eventID, p.now())
	if err != nil {
		return err
	}
	if !closed {
		logging.Debug().
			Str("event_id", eventID).
			Str("session_id", sessionID).
			Msg("end-session for inactive pair, nothing to close")
	}
	return nil
}

func (p *Pipeline) checkEvent(ctx context.Context, eventID string) error {
	exists, err := p.oracle.EventExists(ctx, eventID)
	if err != nil {
		logging.Error().Err(err).Str("event_id", eventID).Msg("event oracle failure")
		return ErrOracleUnavailable
	}
	if !exists {
		return ErrEventNotFound
	}
	return nil
}

// relay fans one sample out to the event's room, excluding the originating
// connection when the sample arrived over the real-time channel.
func (p *Pipeline) relay(payload models.CursorSamplePayload, identity *models.Identity, excludeConnID string) {
	p.rooms.Broadcast(payload.EventID, excludeConnID, models.ServerMessage{
		Type: models.MessageTypeCursorRelay,
		Data: models.CursorRelayData{
			SessionID: payload.SessionID,
			Identity:  identity,
			X:         payload.X,
			Y:         payload.Y,
			Page:      payload.Page,
			Element:   payload.Element,
			Action:    payload.Action,
			Timestamp: p.now(),
		},
	})
}

// ingestSample persists one sample according to its action kind. Runs after
// the relay so persistence failures cannot delay peer notification.
func (p *Pipeline) ingestSample(payload models.CursorSamplePayload) {
	metrics.InteractionsIngested.WithLabelValues(payload.Action).Inc()

	sample := models.CursorSample{
		X:         payload.X,
		Y:         payload.Y,
		Timestamp: p.now(),
		Page:      payload.Page,
		Element:   payload.Element,
		Action:    payload.Action,
	}
	sessionID, eventID := payload.SessionID, payload.EventID

	switch payload.Action {
	case models.ActionClick:
		metrics.SamplesPersisted.WithLabelValues(payload.Action).Inc()
		p.persist("click", func(ctx context.Context) error {
			return p.store.RecordClick(ctx, sessionID, eventID, sample)
		})
	case models.ActionHover:
		metrics.SamplesPersisted.WithLabelValues(payload.Action).Inc()
		p.persist("hover", func(ctx context.Context) error {
			return p.store.RecordHover(ctx, sessionID, eventID, sample, payload.DurationMS)
		})
	case models.ActionScroll:
		metrics.SamplesPersisted.WithLabelValues(payload.Action).Inc()
		p.persist("scroll", func(ctx context.Context) error {
			return p.store.RecordScroll(ctx, sessionID, eventID, sample, payload.DepthPct)
		})
	default:
		// move, focus, blur: raw buffer only, moves thinned by the policy.
		if !p.sample(payload.Action) {
			metrics.SamplesSampledOut.Inc()
			return
		}
		metrics.SamplesPersisted.WithLabelValues(payload.Action).Inc()
		p.persist("cursor_sample", func(ctx context.Context) error {
			return p.store.AppendCursorSample(ctx, sessionID, eventID, sample)
		})
	}
}
