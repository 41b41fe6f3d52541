// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package models defines the canonical data shapes shared across the
// discovery pipeline: the normalized event record, the cache entry
// wrapper, and the search request/result types.
package models

import (
	"time"
)

const (
	// DescriptionLimit bounds the normalized event description length in runes.
	DescriptionLimit = 300

	// DefaultCategory is assigned when a source provides no category.
	DefaultCategory = "general"
)

// EventRecord is the canonical normalized event every source adapter
// must produce. ID is deterministic from (Source, ExternalID) so that
// re-ingesting the same upstream event overwrites instead of duplicating.
type EventRecord struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	ExternalID  string         `json:"external_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	Location    string         `json:"location,omitempty"`
	Category    string         `json:"category"`
	IsFree      bool           `json:"is_free"`
	PriceCents  int64          `json:"price_cents,omitempty"`
	URL         string         `json:"url,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// EventID builds the globally unique event identifier.
func EventID(source, externalID string) string {
	return source + ":" + externalID
}

// Normalize fills derived and defaulted fields in place: the composite ID,
// the default category, and the bounded description.
func (e *EventRecord) Normalize() {
	e.ID = EventID(e.Source, e.ExternalID)
	if e.Category == "" {
		e.Category = DefaultCategory
	}
	e.Description = TruncateDescription(e.Description)
}

// TruncateDescription bounds free-text descriptions from upstream APIs,
// which routinely ship multi-kilobyte HTML blobs.
func TruncateDescription(s string) string {
	runes := []rune(s)
	if len(runes) <= DescriptionLimit {
		return s
	}
	return string(runes[:DescriptionLimit-1]) + "…"
}

// CacheEntry wraps an EventRecord with cache bookkeeping. A zero ExpiresAt
// means "never expires"; in practice the cache always stamps one at write
// time from its configured TTL.
type CacheEntry struct {
	EventRecord

	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry is stale relative to now.
func (c *CacheEntry) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now)
}
