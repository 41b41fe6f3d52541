// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package discovery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Webset lifecycle states as reported by the API.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// WebsetResult is one discovered item.
type WebsetResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// WebsetStatus is a point-in-time snapshot of a webset.
type WebsetStatus struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Results []WebsetResult `json:"results"`
}

// Terminal reports whether the webset will make no further progress.
func (s *WebsetStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// WebsetClient creates and polls deep-discovery websets. The interface
// exists so the manager can be tested against a scripted double.
type WebsetClient interface {
	// CreateWebset starts an asynchronous discovery for the query and
	// returns the webset ID.
	CreateWebset(ctx context.Context, query string, count int) (string, error)

	// GetWebset fetches the current status.
	GetWebset(ctx context.Context, id string) (*WebsetStatus, error)
}

// ExaWebsetClient talks to the Exa Websets API.
type ExaWebsetClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewExaWebsetClient creates the client.
func NewExaWebsetClient(apiKey, baseURL string) *ExaWebsetClient {
	if baseURL == "" {
		baseURL = "https://api.exa.ai/websets/v0"
	}
	return &ExaWebsetClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Available reports whether the client has a credential.
func (c *ExaWebsetClient) Available() bool {
	return c.apiKey != ""
}

type createWebsetRequest struct {
	Search struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	} `json:"search"`
}

// CreateWebset starts a webset search.
func (c *ExaWebsetClient) CreateWebset(ctx context.Context, query string, count int) (string, error) {
	var body createWebsetRequest
	body.Search.Query = query
	body.Search.Count = count

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("webset marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/websets", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("webset request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("webset create failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("webset create returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var status WebsetStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("webset decode: %w", err)
	}
	if status.ID == "" {
		return "", fmt.Errorf("webset create returned no id")
	}
	return status.ID, nil
}

// GetWebset fetches the webset's current status and results.
func (c *ExaWebsetClient) GetWebset(ctx context.Context, id string) (*WebsetStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/websets/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("webset request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webset get failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("webset get returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var status WebsetStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("webset decode: %w", err)
	}
	return &status, nil
}
