// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package sources

import (
	"context"
	"strings"

	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/models"
)

const localName = "local"

// Local serves previously cached events as a first-class source. Rows
// are populated out of band by the scrape command, so the source keeps
// answering when every live API is down.
type Local struct {
	store   *cache.Store
	enabled bool
}

// NewLocal creates the cache-backed source.
func NewLocal(store *cache.Store, enabled bool) *Local {
	return &Local{store: store, enabled: enabled}
}

func (l *Local) Name() string        { return localName }
func (l *Local) Description() string { return "Local event cache (scraped listings)" }
func (l *Local) Priority() int       { return 40 }
func (l *Local) Available() bool     { return l.store != nil && l.enabled }

// Fetch queries the cache with the request's window and filters.
// Keyword matching is a substring check on title and description,
// which is all the cache can offer without a full-text index.
func (l *Local) Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := cache.SearchOptions{}
	if req.TimeWindow != nil {
		opts.StartAfter = req.TimeWindow.Start
		opts.StartBefore = req.TimeWindow.End
	}
	if req.Location != "" {
		opts.LocationContains = req.Location
	}

	entries, err := l.store.Search(opts)
	if err != nil {
		return nil, err
	}

	events := make([]models.EventRecord, 0, len(entries))
	for i := range entries {
		rec := entries[i].EventRecord
		if !matchKeywords(&rec, req.Keywords) {
			continue
		}
		if !matchCategories(&rec, req.Categories) {
			continue
		}
		events = append(events, rec)
	}
	return filterFreeOnly(events, req.FreeOnly), nil
}

func matchKeywords(rec *models.EventRecord, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(rec.Title + " " + rec.Description)
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func matchCategories(rec *models.EventRecord, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range categories {
		if strings.EqualFold(rec.Category, c) {
			return true
		}
	}
	return false
}
