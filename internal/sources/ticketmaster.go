// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

/*
ticketmaster.go - Ticketmaster Discovery API adapter

Structured REST source. Queries /events.json with city, keyword and date
bounds, then normalizes the embedded event list into EventRecords.

API Reference: https://developer.ticketmaster.com/products-and-docs/apis/discovery-api/v2/
*/

package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/eventscout/internal/models"
)

const ticketmasterName = "ticketmaster"

// tmTimeLayout is the Discovery API's date-time format (UTC, no offset).
const tmTimeLayout = "2006-01-02T15:04:05Z"

// Ticketmaster is the Discovery API source adapter.
type Ticketmaster struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// TicketmasterOptions configures the adapter.
type TicketmasterOptions struct {
	APIKey  string
	BaseURL string

	// RateLimit is client-side requests/second; the public Discovery API
	// quota is easy to exhaust during bursty fan-out.
	RateLimit float64
}

// NewTicketmaster creates the adapter. A missing API key leaves the
// source registered but unavailable.
func NewTicketmaster(opts TicketmasterOptions) *Ticketmaster {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://app.ticketmaster.com/discovery/v2"
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 4
	}

	return &Ticketmaster{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
	}
}

func (t *Ticketmaster) Name() string { return ticketmasterName }
func (t *Ticketmaster) Description() string {
	return "Ticketmaster Discovery API (concerts, sports, theatre)"
}
func (t *Ticketmaster) Priority() int   { return 10 }
func (t *Ticketmaster) Available() bool { return t.apiKey != "" }

// tmResponse mirrors the subset of the Discovery API payload we consume.
type tmResponse struct {
	Embedded struct {
		Events []tmEvent `json:"events"`
	} `json:"_embedded"`
}

type tmEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Info  string `json:"info"`
	Dates struct {
		Start struct {
			DateTime string `json:"dateTime"`
		} `json:"start"`
		End struct {
			DateTime string `json:"dateTime"`
		} `json:"end"`
	} `json:"dates"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	PriceRanges []struct {
		Min float64 `json:"min"`
	} `json:"priceRanges"`
	Classifications []struct {
		Segment struct {
			Name string `json:"name"`
		} `json:"segment"`
	} `json:"classifications"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
			Address struct {
				Line1 string `json:"line1"`
			} `json:"address"`
		} `json:"venues"`
	} `json:"_embedded"`
}

// Fetch queries the Discovery API and normalizes the result.
func (t *Ticketmaster) Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("ticketmaster rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("apikey", t.apiKey)
	q.Set("size", "50")
	q.Set("sort", "date,asc")
	if req.Location != "" {
		q.Set("city", req.Location)
	}
	if len(req.Keywords) > 0 {
		q.Set("keyword", strings.Join(req.Keywords, " "))
	}
	if req.TimeWindow != nil {
		q.Set("startDateTime", req.TimeWindow.Start.UTC().Format(tmTimeLayout))
		q.Set("endDateTime", req.TimeWindow.End.UTC().Format(tmTimeLayout))
	}

	endpoint := t.baseURL + "/events.json?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster request: %w", err)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ticketmaster request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ticketmaster returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed tmResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("ticketmaster decode: %w", err)
	}

	events := make([]models.EventRecord, 0, len(parsed.Embedded.Events))
	for i := range parsed.Embedded.Events {
		events = append(events, t.normalize(&parsed.Embedded.Events[i], req))
	}
	return filterFreeOnly(events, req.FreeOnly), nil
}

// normalize converts one Discovery API event to the canonical record.
func (t *Ticketmaster) normalize(ev *tmEvent, req models.SearchRequest) models.EventRecord {
	rec := models.EventRecord{
		Source:      ticketmasterName,
		ExternalID:  ev.ID,
		Title:       ev.Name,
		Description: ev.Info,
		URL:         ev.URL,
		Raw: map[string]any{
			"ticketmaster_id": ev.ID,
		},
	}

	if start, err := time.Parse(tmTimeLayout, ev.Dates.Start.DateTime); err == nil {
		rec.StartTime = &start
	}
	if end, err := time.Parse(tmTimeLayout, ev.Dates.End.DateTime); err == nil {
		rec.EndTime = &end
	}

	if len(ev.Embedded.Venues) > 0 {
		v := ev.Embedded.Venues[0]
		parts := make([]string, 0, 3)
		for _, p := range []string{v.Name, v.Address.Line1, v.City.Name} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		rec.Location = strings.Join(parts, ", ")
	}

	if len(ev.Classifications) > 0 && ev.Classifications[0].Segment.Name != "" {
		rec.Category = strings.ToLower(ev.Classifications[0].Segment.Name)
	}

	if len(ev.PriceRanges) > 0 {
		min := ev.PriceRanges[0].Min
		rec.IsFree = min == 0
		rec.PriceCents = int64(min * 100)
	}

	if len(ev.Images) > 0 {
		rec.ImageURL = ev.Images[0].URL
	}

	rec.Normalize()
	return rec
}

// filterFreeOnly drops paid events when the request asks for free ones.
func filterFreeOnly(events []models.EventRecord, freeOnly bool) []models.EventRecord {
	if !freeOnly {
		return events
	}
	out := events[:0]
	for _, ev := range events {
		if ev.IsFree {
			out = append(out, ev)
		}
	}
	return out
}
