// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

/*
seatgeek.go - SeatGeek Platform API adapter

Structured REST source. SeatGeek's /events endpoint filters by city,
free-text query and UTC datetime bounds.

API Reference: https://platform.seatgeek.com/
*/

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscout/internal/models"
)

const seatgeekName = "seatgeek"

const sgTimeLayout = "2006-01-02T15:04:05"

// SeatGeek is the Platform API source adapter.
type SeatGeek struct {
	clientID   string
	baseURL    string
	httpClient *http.Client
}

// NewSeatGeek creates the adapter. A missing client ID leaves the source
// registered but unavailable.
func NewSeatGeek(clientID, baseURL string) *SeatGeek {
	if baseURL == "" {
		baseURL = "https://api.seatgeek.com/2"
	}
	return &SeatGeek{
		clientID: clientID,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
	}
}

func (s *SeatGeek) Name() string        { return seatgeekName }
func (s *SeatGeek) Description() string { return "SeatGeek Platform API (live events and tickets)" }
func (s *SeatGeek) Priority() int       { return 20 }
func (s *SeatGeek) Available() bool     { return s.clientID != "" }

type sgResponse struct {
	Events []sgEvent `json:"events"`
}

type sgEvent struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DatetimeUTC string `json:"datetime_utc"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	Venue       struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		City    string `json:"city"`
	} `json:"venue"`
	Stats struct {
		LowestPrice *float64 `json:"lowest_price"`
	} `json:"stats"`
	Performers []struct {
		Image string `json:"image"`
	} `json:"performers"`
}

// Fetch queries the Platform API and normalizes the result.
func (s *SeatGeek) Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error) {
	q := url.Values{}
	q.Set("client_id", s.clientID)
	q.Set("per_page", "50")
	if req.Location != "" {
		q.Set("venue.city", req.Location)
	}
	if len(req.Keywords) > 0 {
		q.Set("q", strings.Join(req.Keywords, " "))
	}
	if req.TimeWindow != nil {
		q.Set("datetime_utc.gte", req.TimeWindow.Start.UTC().Format(sgTimeLayout))
		q.Set("datetime_utc.lte", req.TimeWindow.End.UTC().Format(sgTimeLayout))
	}

	endpoint := s.baseURL + "/events?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("seatgeek request: %w", err)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("seatgeek request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("seatgeek returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed sgResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("seatgeek decode: %w", err)
	}

	events := make([]models.EventRecord, 0, len(parsed.Events))
	for i := range parsed.Events {
		events = append(events, s.normalize(&parsed.Events[i]))
	}
	return filterFreeOnly(events, req.FreeOnly), nil
}

func (s *SeatGeek) normalize(ev *sgEvent) models.EventRecord {
	rec := models.EventRecord{
		Source:      seatgeekName,
		ExternalID:  strconv.FormatInt(ev.ID, 10),
		Title:       ev.Title,
		Description: ev.Description,
		Category:    ev.Type,
		URL:         ev.URL,
		Raw: map[string]any{
			"seatgeek_id": ev.ID,
		},
	}

	if start, err := time.Parse(sgTimeLayout, ev.DatetimeUTC); err == nil {
		startUTC := start.UTC()
		rec.StartTime = &startUTC
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{ev.Venue.Name, ev.Venue.Address, ev.Venue.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	rec.Location = strings.Join(parts, ", ")

	if ev.Stats.LowestPrice != nil {
		rec.IsFree = *ev.Stats.LowestPrice == 0
		rec.PriceCents = int64(*ev.Stats.LowestPrice * 100)
	}

	if len(ev.Performers) > 0 {
		rec.ImageURL = ev.Performers[0].Image
	}

	rec.Normalize()
	return rec
}
