// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package sources

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/models"
)

func newLocalTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.Open(cache.Options{TTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLocalAvailability(t *testing.T) {
	store := newLocalTestStore(t)

	if NewLocal(nil, true).Available() {
		t.Error("nil store must be unavailable")
	}
	if NewLocal(store, false).Available() {
		t.Error("disabled source must be unavailable")
	}
	if !NewLocal(store, true).Available() {
		t.Error("enabled source with store must be available")
	}
}

func TestLocalFetchFilters(t *testing.T) {
	store := newLocalTestStore(t)

	start := time.Date(2026, 3, 7, 20, 0, 0, 0, time.UTC)
	events := []models.EventRecord{
		{
			Source:      localName,
			ExternalID:  "1",
			Title:       "Jazz Jam Session",
			Description: "Weekly improvised jazz",
			Location:    "A-Trane, Berlin",
			Category:    "music",
			StartTime:   &start,
			IsFree:      true,
		},
		{
			Source:      localName,
			ExternalID:  "2",
			Title:       "Poetry Slam",
			Description: "Open stage",
			Location:    "SO36, Berlin",
			Category:    "literature",
			StartTime:   &start,
		},
	}
	if _, err := store.UpsertEvents(events); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	src := NewLocal(store, true)

	got, err := src.Fetch(context.Background(), models.SearchRequest{Keywords: []string{"jazz"}})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "Jazz Jam Session" {
		t.Errorf("keyword filter returned %v", got)
	}

	got, err = src.Fetch(context.Background(), models.SearchRequest{Categories: []string{"Literature"}})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "2" {
		t.Errorf("category filter returned %v", got)
	}

	got, err = src.Fetch(context.Background(), models.SearchRequest{FreeOnly: true})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 1 || !got[0].IsFree {
		t.Errorf("free-only filter returned %v", got)
	}

	window := &models.TimeWindow{
		Start: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	got, err = src.Fetch(context.Background(), models.SearchRequest{TimeWindow: window})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("window outside both events returned %v", got)
	}
}

func TestLocalFetchHonorsContext(t *testing.T) {
	store := newLocalTestStore(t)
	src := NewLocal(store, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Fetch(ctx, models.SearchRequest{}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
