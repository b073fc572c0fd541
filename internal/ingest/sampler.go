// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package ingest

import (
	"math/rand/v2"

	"github.com/eventlens/eventlens/internal/models"
)

// SamplingPolicy decides whether a sample for the given action is persisted.
// Injectable so tests can pin the decision to always or never.
type SamplingPolicy func(action string) bool

// NewRateSampler returns the production policy: move samples are kept with
// probability moveRate, every other action is always kept. Discrete actions
// (click, hover, scroll, focus, blur) are low-frequency and analytically
// valuable, so only the raw move stream is thinned.
func NewRateSampler(moveRate float64) SamplingPolicy {
	return func(action string) bool {
		if action != models.ActionMove {
			return true
		}
		return rand.Float64() < moveRate
	}
}

// SampleAll keeps every sample. Intended for tests.
func SampleAll(string) bool { return true }

// SampleNone drops every move sample while keeping discrete actions,
// matching NewRateSampler(0). Intended for tests.
func SampleNone(action string) bool { return action != models.ActionMove }
