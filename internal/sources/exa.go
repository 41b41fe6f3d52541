// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

/*
exa.go - Exa neural search adapter

Catch-all source for long-tail event pages the structured APIs miss.
Results are web documents, so coverage beats precision: external IDs
are derived from the result URL and times are usually absent, which
the aggregation order handles by sorting undated events last.
*/

package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscout/internal/models"
)

const exaName = "exa"

// Exa is the Exa neural search source adapter.
type Exa struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewExa creates the adapter. A missing API key leaves the source
// registered but unavailable.
func NewExa(apiKey, baseURL string) *Exa {
	if baseURL == "" {
		baseURL = "https://api.exa.ai"
	}
	return &Exa{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
	}
}

func (e *Exa) Name() string        { return exaName }
func (e *Exa) Description() string { return "Exa neural web search (long-tail event pages)" }
func (e *Exa) Priority() int       { return 50 }
func (e *Exa) Available() bool     { return e.apiKey != "" }

type exaRequest struct {
	Query              string `json:"query"`
	Type               string `json:"type"`
	NumResults         int    `json:"numResults"`
	StartPublishedDate string `json:"startPublishedDate,omitempty"`
	Contents           struct {
		Text struct {
			MaxCharacters int `json:"maxCharacters"`
		} `json:"text"`
	} `json:"contents"`
}

type exaResponse struct {
	Results []exaResult `json:"results"`
}

type exaResult struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	Text          string `json:"text"`
	PublishedDate string `json:"publishedDate"`
}

// Fetch runs a neural search built from the request terms and city.
func (e *Exa) Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error) {
	query := e.buildQuery(req)

	var body exaRequest
	body.Query = query
	body.Type = "neural"
	body.NumResults = 25
	body.Contents.Text.MaxCharacters = 400
	if req.TimeWindow != nil {
		// Published date is a weak proxy for event date, but it
		// keeps stale listings out of the candidate set.
		body.StartPublishedDate = req.TimeWindow.Start.UTC().AddDate(0, -1, 0).Format(time.RFC3339)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("exa marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("exa request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("exa request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("exa returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed exaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("exa decode: %w", err)
	}

	events := make([]models.EventRecord, 0, len(parsed.Results))
	for i := range parsed.Results {
		rec, ok := e.normalize(&parsed.Results[i], req.Location)
		if ok {
			events = append(events, rec)
		}
	}
	return filterFreeOnly(events, req.FreeOnly), nil
}

func (e *Exa) buildQuery(req models.SearchRequest) string {
	parts := make([]string, 0, 4)
	if len(req.Keywords) > 0 {
		parts = append(parts, strings.Join(req.Keywords, " "))
	}
	if len(req.Categories) > 0 {
		parts = append(parts, strings.Join(req.Categories, " "))
	}
	parts = append(parts, "events")
	if req.Location != "" {
		parts = append(parts, "in "+req.Location)
	}
	if req.TimeWindow != nil {
		parts = append(parts, req.TimeWindow.Start.Format("January 2006"))
	}
	return strings.Join(parts, " ")
}

func (e *Exa) normalize(r *exaResult, location string) (models.EventRecord, bool) {
	if r.URL == "" || r.Title == "" {
		return models.EventRecord{}, false
	}

	externalID := r.ID
	if externalID == "" {
		externalID = r.URL
	}

	rec := models.EventRecord{
		Source:      exaName,
		ExternalID:  externalID,
		Title:       r.Title,
		Description: r.Text,
		Location:    location,
		URL:         r.URL,
		Raw: map[string]any{
			"published_date": r.PublishedDate,
		},
	}
	rec.Normalize()
	return rec, true
}
