// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package aggregate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/eventscout/internal/models"
	"github.com/tomtom215/eventscout/internal/sources"
)

// stubSource is a scripted Source for engine tests.
type stubSource struct {
	name      string
	priority  int
	available bool
	events    []models.EventRecord
	err       error
	panics    bool
	delay     time.Duration
}

func (s *stubSource) Name() string        { return s.name }
func (s *stubSource) Description() string { return s.name }
func (s *stubSource) Priority() int       { return s.priority }
func (s *stubSource) Available() bool     { return s.available }

func (s *stubSource) Fetch(ctx context.Context, _ models.SearchRequest) ([]models.EventRecord, error) {
	if s.panics {
		panic("scripted panic")
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.events, s.err
}

func newEngine(t *testing.T, opts Options, srcs ...*stubSource) *Engine {
	t.Helper()
	reg := sources.NewRegistry()
	for _, s := range srcs {
		if err := reg.Register(s); err != nil {
			t.Fatalf("Register(%s) failed: %v", s.name, err)
		}
	}
	return New(reg, opts)
}

func event(source, id, title string, start *time.Time) models.EventRecord {
	rec := models.EventRecord{Source: source, ExternalID: id, Title: title, StartTime: start}
	rec.Normalize()
	return rec
}

func tm(hour int) *time.Time {
	t := time.Date(2026, 3, 7, hour, 0, 0, 0, time.UTC)
	return &t
}

func TestSearchNoAvailableSources(t *testing.T) {
	eng := newEngine(t, Options{}, &stubSource{name: "down", available: false})

	res := eng.Search(context.Background(), models.SearchRequest{})
	if res.Attribution != models.AttributionUnavailable {
		t.Errorf("Attribution = %s", res.Attribution)
	}
	if res.Message != msgNoSources {
		t.Errorf("Message = %s", res.Message)
	}
	if len(res.Events) != 0 {
		t.Errorf("expected no events, got %d", len(res.Events))
	}
}

func TestSearchAllSourcesFail(t *testing.T) {
	eng := newEngine(t, Options{},
		&stubSource{name: "a", available: true, err: errors.New("boom")},
		&stubSource{name: "b", available: true, err: errors.New("bust")},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if res.Attribution != models.AttributionUnavailable {
		t.Errorf("Attribution = %s", res.Attribution)
	}
	if res.Message != msgNoSources {
		t.Errorf("Message = %s", res.Message)
	}
}

func TestSearchNoMatchIsNotUnavailable(t *testing.T) {
	eng := newEngine(t, Options{},
		&stubSource{name: "a", available: true},
		&stubSource{name: "b", available: true},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if res.Attribution == models.AttributionUnavailable {
		t.Error("responding-but-empty sources must not report unavailable")
	}
	if res.Message != msgNoMatch {
		t.Errorf("Message = %s", res.Message)
	}
	if len(res.SourcesUsed) != 2 {
		t.Errorf("SourcesUsed = %v", res.SourcesUsed)
	}
}

func TestSearchDeduplicatesByTitleFirstWins(t *testing.T) {
	eng := newEngine(t, Options{},
		&stubSource{name: "primary", priority: 10, available: true, events: []models.EventRecord{
			event("primary", "1", "Berghain Klubnacht", tm(23)),
		}},
		&stubSource{name: "secondary", priority: 20, available: true, events: []models.EventRecord{
			event("secondary", "9", "  berghain klubnacht ", tm(22)),
			event("secondary", "10", "Open Air Kino", tm(20)),
		}},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(res.Events))
	}
	for _, ev := range res.Events {
		if ev.Title == "Berghain Klubnacht" && ev.Source != "primary" {
			t.Errorf("duplicate resolved to %s, want primary", ev.Source)
		}
	}
	if res.Attribution != "primary+secondary" {
		t.Errorf("Attribution = %s", res.Attribution)
	}
}

func TestSearchIsolatesFailingSource(t *testing.T) {
	eng := newEngine(t, Options{},
		&stubSource{name: "good", priority: 10, available: true, events: []models.EventRecord{
			event("good", "1", "Solid Event", tm(18)),
		}},
		&stubSource{name: "bad", priority: 20, available: true, err: errors.New("api down")},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if len(res.Events) != 1 {
		t.Fatalf("got %d events, want 1", len(res.Events))
	}
	if res.Attribution != "good" {
		t.Errorf("Attribution = %s", res.Attribution)
	}
	if len(res.SourcesUsed) != 1 || res.SourcesUsed[0] != "good" {
		t.Errorf("SourcesUsed = %v", res.SourcesUsed)
	}
}

func TestSearchContainsPanickingSource(t *testing.T) {
	eng := newEngine(t, Options{},
		&stubSource{name: "calm", priority: 10, available: true, events: []models.EventRecord{
			event("calm", "1", "Quiet Evening", tm(19)),
		}},
		&stubSource{name: "wild", priority: 20, available: true, panics: true},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if len(res.Events) != 1 || res.Events[0].Title != "Quiet Evening" {
		t.Fatalf("panicking source must be isolated, got %v", res.Events)
	}
}

func TestSearchTimesOutSlowSource(t *testing.T) {
	eng := newEngine(t, Options{SourceTimeout: 20 * time.Millisecond},
		&stubSource{name: "fast", priority: 10, available: true, events: []models.EventRecord{
			event("fast", "1", "Prompt Show", tm(17)),
		}},
		&stubSource{name: "slow", priority: 20, available: true, delay: 500 * time.Millisecond, events: []models.EventRecord{
			event("slow", "2", "Late Show", tm(21)),
		}},
	)

	start := time.Now()
	res := eng.Search(context.Background(), models.SearchRequest{})
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Errorf("search took %v, slow source should have been cut off", elapsed)
	}

	if len(res.Events) != 1 || res.Events[0].Source != "fast" {
		t.Errorf("expected only the fast source, got %v", res.Events)
	}
}

func TestSearchSortsUndatedLastAndCaps(t *testing.T) {
	var evs []models.EventRecord
	evs = append(evs, event("big", "undated", "Mystery Happening", nil))
	for i := 0; i < 20; i++ {
		evs = append(evs, event("big", fmt.Sprintf("%d", i), fmt.Sprintf("Show %d", i), tm(23-(i%12))))
	}

	eng := newEngine(t, Options{MaxResults: 15},
		&stubSource{name: "big", available: true, events: evs},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if len(res.Events) != 15 {
		t.Fatalf("got %d events, want cap of 15", len(res.Events))
	}
	for i := 1; i < len(res.Events); i++ {
		prev, cur := res.Events[i-1].StartTime, res.Events[i].StartTime
		if prev == nil && cur != nil {
			t.Fatal("undated event sorted before dated one")
		}
		if prev != nil && cur != nil && prev.After(*cur) {
			t.Fatalf("events out of order at index %d", i)
		}
	}
}

func TestSearchMergesInPriorityOrder(t *testing.T) {
	eng := newEngine(t, Options{},
		&stubSource{name: "zeta", priority: 10, available: true, events: []models.EventRecord{
			event("zeta", "1", "First", nil),
		}},
		&stubSource{name: "alpha", priority: 20, available: true, events: []models.EventRecord{
			event("alpha", "2", "Second", nil),
		}},
	)

	res := eng.Search(context.Background(), models.SearchRequest{})
	if res.Attribution != "zeta+alpha" {
		t.Errorf("Attribution = %s, want priority order", res.Attribution)
	}
}
