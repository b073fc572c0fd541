// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package database

import (
	"strings"
	"time"
)

// SessionFilter contains the optional filter parameters accepted by the
// analytics queries. All fields combine with AND logic; nil/empty fields
// apply no constraint.
//
//   - StartDate / EndDate bound the session start time (heatmap queries
//     apply them to the click timestamp instead)
//   - Page restricts heatmap queries to one page
type SessionFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Page      string
}

// buildFilterConditions renders the filter into WHERE fragments against the
// given timestamp column, alongside the mandatory event scope.
func buildFilterConditions(eventID string, f SessionFilter, timeColumn string) (string, []interface{}) {
	return buildPrefixedFilterConditions(eventID, f, timeColumn, "")
}

// buildPrefixedFilterConditions is buildFilterConditions with a table alias
// prefix applied to the session_logs columns, for joined queries.
func buildPrefixedFilterConditions(eventID string, f SessionFilter, timeColumn, prefix string) (string, []interface{}) {
	clauses := []string{prefix + "event_id = ?"}
	args := []interface{}{eventID}

	if f.StartDate != nil {
		clauses = append(clauses, prefix+timeColumn+" >= ?")
		args = append(args, *f.StartDate)
	}
	if f.EndDate != nil {
		clauses = append(clauses, prefix+timeColumn+" <= ?")
		args = append(args, *f.EndDate)
	}

	return strings.Join(clauses, " AND "), args
}
