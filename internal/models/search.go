// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package models

import "time"

// TimeWindow is a concrete half-open interest window resolved from the
// user's phrasing. Both bounds are inclusive for display purposes; range
// filtering uses StartTime within [Start, End].
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SearchRequest carries everything a source adapter needs to run a query.
// Fields are explicit and strongly typed - adapters must never probe for
// optional attributes dynamically.
type SearchRequest struct {
	// TimeWindow is nil when the user has not bounded the search yet.
	// The aggregation layer still runs; asking for clarification is the
	// conversational layer's concern, not this one's.
	TimeWindow *TimeWindow `json:"time_window,omitempty"`

	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	FreeOnly   bool     `json:"free_only,omitempty"`

	// Location defaults to the deployment's configured city when empty.
	Location string `json:"location,omitempty"`

	// MaxDistanceKM is 0 when unset.
	MaxDistanceKM float64 `json:"max_distance_km,omitempty"`
}

// Attribution values for AggregatedResult when no source contributed.
const (
	AttributionUnavailable = "unavailable"
)

// AggregatedResult is the outcome of one fan-out search. SourcesUsed empty
// with a message means "no provider available"; Events empty with
// SourcesUsed populated means "providers responded, nothing matched".
// Callers must keep these states distinct in anything user-visible.
type AggregatedResult struct {
	Events      []EventRecord `json:"events"`
	SourcesUsed []string      `json:"sources_used"`
	Attribution string        `json:"attribution"`
	Message     string        `json:"message,omitempty"`
}
