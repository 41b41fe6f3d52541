// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package sources

import (
	"context"
	"errors"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eventscout/internal/models"
)

func TestBreakerSourcePassesThrough(t *testing.T) {
	inner := &fakeSource{
		name:      "passthrough",
		available: true,
		events:    []models.EventRecord{{Source: "passthrough", ExternalID: "1", Title: "A"}},
	}
	src := WithBreaker(inner)

	events, err := src.Fetch(context.Background(), models.SearchRequest{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(events) != 1 || events[0].Title != "A" {
		t.Errorf("unexpected events: %v", events)
	}
	if src.Name() != "passthrough" || src.Priority() != inner.Priority() {
		t.Error("wrapper must delegate identity methods")
	}
}

func TestBreakerSourceOpensOnRepeatedFailure(t *testing.T) {
	inner := &fakeSource{
		name:      "flaky",
		available: true,
		err:       errors.New("upstream down"),
	}
	src := WithBreaker(inner)

	for i := 0; i < 5; i++ {
		if _, err := src.Fetch(context.Background(), models.SearchRequest{}); err == nil {
			t.Fatalf("call %d unexpectedly succeeded", i)
		}
	}

	// The sixth call must be rejected without reaching the source.
	callsBefore := inner.calls
	_, err := src.Fetch(context.Background(), models.SearchRequest{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected ErrOpenState, got %v", err)
	}
	if inner.calls != callsBefore {
		t.Error("open breaker must not invoke the wrapped source")
	}
}
