// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

/*
dice.go - DICE GraphQL adapter

GraphQL source for club nights and gigs. A single eventSearch query
carries the city, free-text terms and date bounds as variables.
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

const diceName = "dice"

// diceQuery is the single GraphQL document this adapter issues.
const diceQuery = `query EventSearch($city: String, $query: String, $from: DateTime, $to: DateTime, $first: Int!) {
  eventSearch(city: $city, query: $query, dateFrom: $from, dateTo: $to, first: $first) {
    edges {
      node {
        id
        name
        description
        date
        dateEnd
        url
        genre
        freeEntry
        priceFrom { amount }
        venue { name address }
        image { url }
      }
    }
  }
}`

// Dice is the DICE GraphQL source adapter.
type Dice struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDice creates the adapter. A missing API key leaves the source
// registered but unavailable.
func NewDice(apiKey, baseURL string) *Dice {
	if baseURL == "" {
		baseURL = "https://api.dice.fm/graphql"
	}
	return &Dice{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 25 * time.Second,
		},
	}
}

func (d *Dice) Name() string        { return diceName }
func (d *Dice) Description() string { return "DICE (club nights, gigs, independent venues)" }
func (d *Dice) Priority() int       { return 30 }
func (d *Dice) Available() bool     { return d.apiKey != "" }

type diceRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type diceResponse struct {
	Data struct {
		EventSearch struct {
			Edges []struct {
				Node diceNode `json:"node"`
			} `json:"edges"`
		} `json:"eventSearch"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type diceNode struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        string `json:"date"`
	DateEnd     string `json:"dateEnd"`
	URL         string `json:"url"`
	Genre       string `json:"genre"`
	FreeEntry   bool   `json:"freeEntry"`
	PriceFrom   *struct {
		Amount int64 `json:"amount"`
	} `json:"priceFrom"`
	Venue struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"venue"`
	Image struct {
		URL string `json:"url"`
	} `json:"image"`
}

// Fetch issues the eventSearch query and normalizes the result.
func (d *Dice) Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error) {
	variables := map[string]any{
		"first": 50,
	}
	if req.Location != "" {
		variables["city"] = req.Location
	}
	if len(req.Keywords) > 0 {
		variables["query"] = strings.Join(req.Keywords, " ")
	}
	if req.TimeWindow != nil {
		variables["from"] = req.TimeWindow.Start.UTC().Format(time.RFC3339)
		variables["to"] = req.TimeWindow.End.UTC().Format(time.RFC3339)
	}

	payload, err := json.Marshal(diceRequest{Query: diceQuery, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("dice marshal: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("dice request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("dice request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("dice returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed diceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("dice decode: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("dice graphql error: %s", parsed.Errors[0].Message)
	}

	edges := parsed.Data.EventSearch.Edges
	events := make([]models.EventRecord, 0, len(edges))
	for i := range edges {
		events = append(events, d.normalize(&edges[i].Node))
	}
	return filterFreeOnly(events, req.FreeOnly), nil
}

func (d *Dice) normalize(n *diceNode) models.EventRecord {
	rec := models.EventRecord{
		Source:      diceName,
		ExternalID:  n.ID,
		Title:       n.Name,
		Description: n.Description,
		Category:    strings.ToLower(n.Genre),
		IsFree:      n.FreeEntry,
		URL:         n.URL,
		ImageURL:    n.Image.URL,
		Raw: map[string]any{
			"dice_id": n.ID,
		},
	}

	if start, err := time.Parse(time.RFC3339, n.Date); err == nil {
		rec.StartTime = &start
	}
	if end, err := time.Parse(time.RFC3339, n.DateEnd); err == nil {
		rec.EndTime = &end
	}

	if !n.FreeEntry && n.PriceFrom != nil {
		rec.PriceCents = n.PriceFrom.Amount
	}

	parts := make([]string, 0, 2)
	for _, p := range []string{n.Venue.Name, n.Venue.Address} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	rec.Location = strings.Join(parts, ", ")

	rec.Normalize()
	return rec
}
