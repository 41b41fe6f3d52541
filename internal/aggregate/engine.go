// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

/*
Package aggregate fans a search out to every available source, contains
per-source failures, and merges the survivors into one ranked result.

The contract with callers: a search never fails because one upstream
does. A source that errors, times out or panics is simply absent from
the merged result, and the attribution string reflects who actually
answered.
*/
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/metrics"
	"github.com/tomtom215/eventscout/internal/models"
	"github.com/tomtom215/eventscout/internal/sources"
)

const (
	// DefaultSourceTimeout bounds each individual source fetch.
	DefaultSourceTimeout = 25 * time.Second

	// DefaultMaxResults caps the merged result list.
	DefaultMaxResults = 15
)

// Messages returned when the merged result is empty. The two cases are
// deliberately distinct: "nothing matched" and "nobody could answer"
// call for different user responses.
const (
	msgNoSources = "No event sources are currently available. Please try again later."
	msgNoMatch   = "No events found matching your search. Try a different time window or broader keywords."
)

// Engine runs concurrent multi-source searches.
type Engine struct {
	registry *sources.Registry
	timeout  time.Duration
	maxOut   int
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	SourceTimeout time.Duration
	MaxResults    int
}

// New creates an Engine over the given registry.
func New(registry *sources.Registry, opts Options) *Engine {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	return &Engine{
		registry: registry,
		timeout:  opts.SourceTimeout,
		maxOut:   opts.MaxResults,
	}
}

// fetchOutcome is one source's contribution to a search.
type fetchOutcome struct {
	source string
	events []models.EventRecord
	err    error
}

// Search fans the request out to all available sources and merges the
// results. The returned error is only non-nil for caller mistakes
// (nil request semantics); upstream failures are absorbed.
func (e *Engine) Search(ctx context.Context, req models.SearchRequest) models.AggregatedResult {
	available := e.registry.Available()
	if len(available) == 0 {
		metrics.AggregationSearches.WithLabelValues("unavailable").Inc()
		return models.AggregatedResult{
			Events:      []models.EventRecord{},
			SourcesUsed: []string{},
			Attribution: models.AttributionUnavailable,
			Message:     msgNoSources,
		}
	}

	outcomes := e.fanOut(ctx, available, req)
	return e.merge(available, outcomes)
}

// fanOut queries every source concurrently. Each fetch gets its own
// deadline and panic containment, so one misbehaving adapter cannot
// sink the batch or the process.
func (e *Engine) fanOut(ctx context.Context, srcs []sources.Source, req models.SearchRequest) map[string]fetchOutcome {
	results := make(chan fetchOutcome, len(srcs))
	var wg sync.WaitGroup

	for _, src := range srcs {
		wg.Add(1)
		go func(src sources.Source) {
			defer wg.Done()
			results <- e.fetchOne(ctx, src, req)
		}(src)
	}
	wg.Wait()
	close(results)

	outcomes := make(map[string]fetchOutcome, len(srcs))
	for out := range results {
		outcomes[out.source] = out
	}
	return outcomes
}

func (e *Engine) fetchOne(ctx context.Context, src sources.Source, req models.SearchRequest) (out fetchOutcome) {
	name := src.Name()
	out.source = name

	defer func() {
		if r := recover(); r != nil {
			out.events = nil
			out.err = fmt.Errorf("source %s panicked: %v", name, r)
			metrics.SourceFetchOutcomes.WithLabelValues(name, "panic").Inc()
			logging.Error().
				Str("source", name).
				Interface("panic", r).
				Msg("source fetch panicked")
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	events, err := src.Fetch(fetchCtx, req)
	elapsed := time.Since(start)
	metrics.SourceFetchDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		outcome := "error"
		if fetchCtx.Err() == context.DeadlineExceeded {
			outcome = "timeout"
		}
		metrics.SourceFetchOutcomes.WithLabelValues(name, outcome).Inc()
		logging.Warn().
			Err(err).
			Str("source", name).
			Dur("elapsed", elapsed).
			Msg("source fetch failed")
		out.err = err
	case len(events) == 0:
		metrics.SourceFetchOutcomes.WithLabelValues(name, "empty").Inc()
	default:
		metrics.SourceFetchOutcomes.WithLabelValues(name, "ok").Inc()
		metrics.SourceEventsReturned.WithLabelValues(name).Add(float64(len(events)))
	}

	out.events = events
	return out
}

// merge combines per-source outcomes in registry priority order:
// deduplicate by title (first occurrence wins, so higher-priority
// sources keep their version), sort by start time with undated events
// last, and cap the list.
func (e *Engine) merge(ordered []sources.Source, outcomes map[string]fetchOutcome) models.AggregatedResult {
	merged := make([]models.EventRecord, 0, e.maxOut)
	seenTitles := make(map[string]bool)
	var used, responded []string

	for _, src := range ordered {
		out, ok := outcomes[src.Name()]
		if !ok || out.err != nil {
			continue
		}
		responded = append(responded, out.source)
		if len(out.events) == 0 {
			continue
		}
		used = append(used, out.source)

		for _, ev := range out.events {
			key := dedupKey(ev.Title)
			if key == "" || seenTitles[key] {
				if key != "" {
					metrics.DedupDropped.Inc()
				}
				continue
			}
			seenTitles[key] = true
			merged = append(merged, ev)
		}
	}

	// Every source failing is a different situation from every source
	// answering with nothing, and the message must say which one it was.
	if len(responded) == 0 {
		metrics.AggregationSearches.WithLabelValues("unavailable").Inc()
		return models.AggregatedResult{
			Events:      []models.EventRecord{},
			SourcesUsed: []string{},
			Attribution: models.AttributionUnavailable,
			Message:     msgNoSources,
		}
	}

	if len(merged) == 0 {
		metrics.AggregationSearches.WithLabelValues("no_match").Inc()
		return models.AggregatedResult{
			Events:      []models.EventRecord{},
			SourcesUsed: responded,
			Attribution: attribution(responded),
			Message:     msgNoMatch,
		}
	}

	sortEvents(merged)
	if len(merged) > e.maxOut {
		merged = merged[:e.maxOut]
	}

	metrics.AggregationSearches.WithLabelValues("ok").Inc()
	metrics.AggregationResultSize.Observe(float64(len(merged)))

	return models.AggregatedResult{
		Events:      merged,
		SourcesUsed: used,
		Attribution: attribution(used),
	}
}

// dedupKey normalizes a title for duplicate detection. Sources list the
// same event with different casing and stray whitespace; anything
// fancier (fuzzy matching) trades false merges for little gain.
func dedupKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// sortEvents orders by start time ascending with undated events last.
func sortEvents(events []models.EventRecord) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].StartTime, events[j].StartTime
		switch {
		case a == nil && b == nil:
			return false
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// attribution names the sources that contributed, joined with "+".
// An empty contributor list means every source failed or came back
// empty; the caller distinguishes the two via Message.
func attribution(used []string) string {
	if len(used) == 0 {
		return models.AttributionUnavailable
	}
	return strings.Join(used, "+")
}
