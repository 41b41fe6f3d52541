// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscout/internal/aggregate"
	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/config"
	"github.com/tomtom215/eventscout/internal/models"
	"github.com/tomtom215/eventscout/internal/push"
	"github.com/tomtom215/eventscout/internal/sources"
	"github.com/tomtom215/eventscout/internal/temporal"
)

type testSource struct {
	name      string
	available bool
	events    []models.EventRecord
}

func (s *testSource) Name() string        { return s.name }
func (s *testSource) Description() string { return "test source " + s.name }
func (s *testSource) Priority() int       { return 10 }
func (s *testSource) Available() bool     { return s.available }

func (s *testSource) Fetch(_ context.Context, _ models.SearchRequest) ([]models.EventRecord, error) {
	return s.events, nil
}

type testDiscovery struct {
	startOK   bool
	started   []string
	profiles  []models.SearchRequest
	cancelled []string
}

func (d *testDiscovery) StartDiscovery(sessionID string, profile models.SearchRequest) (string, bool) {
	if !d.startOK {
		return "", false
	}
	d.started = append(d.started, sessionID)
	d.profiles = append(d.profiles, profile)
	return "job-1", true
}

func (d *testDiscovery) CancelSessionTasks(sessionID string) {
	d.cancelled = append(d.cancelled, sessionID)
}

func (d *testDiscovery) ActiveJobs() int { return len(d.started) - len(d.cancelled) }

type testEnv struct {
	server    *httptest.Server
	cfg       *config.Config
	store     *cache.Store
	discovery *testDiscovery
	hub       *push.Hub
}

func newTestEnv(t *testing.T, srcs ...sources.Source) *testEnv {
	t.Helper()

	cfg := config.Default()
	store, err := cache.Open(cache.Options{TTL: 24 * time.Hour})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	registry := sources.NewRegistry()
	for _, src := range srcs {
		if err := registry.Register(src); err != nil {
			t.Fatalf("register source: %v", err)
		}
	}

	disc := &testDiscovery{startOK: true}
	hub := push.NewHub(8)
	handler := NewHandler(
		cfg,
		aggregate.New(registry, aggregate.Options{SourceTimeout: time.Second}),
		temporal.New(time.UTC),
		store,
		registry,
		disc,
		hub,
	)

	srv := httptest.NewServer(NewRouter(cfg, handler))
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, cfg: cfg, store: store, discovery: disc, hub: hub}
}

func decodeResponse(t *testing.T, resp *http.Response) APIResponse {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestSearchEndpoint(t *testing.T) {
	start := time.Now().Add(24 * time.Hour)
	env := newTestEnv(t, &testSource{
		name:      "alpha",
		available: true,
		events: []models.EventRecord{
			{Source: "alpha", ExternalID: "1", Title: "Gallery Opening", StartTime: &start},
		},
	})

	resp := postJSON(t, env.server.URL+"/api/v1/search", `{"keywords":["art"]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if !out.Success {
		t.Fatalf("unexpected error: %+v", out.Error)
	}

	data, _ := json.Marshal(out.Data)
	var result searchResponse
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].Title != "Gallery Opening" {
		t.Errorf("Events = %v", result.Events)
	}
	if result.Attribution != "alpha" {
		t.Errorf("Attribution = %s", result.Attribution)
	}
}

func TestSearchEndpointResolvesTimePhrase(t *testing.T) {
	env := newTestEnv(t, &testSource{name: "alpha", available: true})

	resp := postJSON(t, env.server.URL+"/api/v1/search", `{"when":"this weekend"}`)
	out := decodeResponse(t, resp)
	if !out.Success {
		t.Fatalf("unexpected error: %+v", out.Error)
	}

	data, _ := json.Marshal(out.Data)
	var result searchResponse
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode search response: %v", err)
	}
	if result.ResolvedWindow == nil {
		t.Fatal("expected a resolved window")
	}
	if result.ResolvedWindow.Start.IsZero() || result.ResolvedWindow.End.IsZero() {
		t.Error("resolved window has zero bounds")
	}
}

func TestSearchEndpointAsksForClarification(t *testing.T) {
	env := newTestEnv(t, &testSource{name: "alpha", available: true})

	resp := postJSON(t, env.server.URL+"/api/v1/search", `{"when":"whenever honestly"}`)
	out := decodeResponse(t, resp)
	if !out.Success {
		t.Fatalf("unexpected error: %+v", out.Error)
	}

	data, _ := json.Marshal(out.Data)
	var result clarificationResponse
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("decode clarification: %v", err)
	}
	if !result.NeedsClarification || result.Question == "" {
		t.Errorf("expected clarification, got %+v", result)
	}
}

func TestSearchEndpointRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.server.URL+"/api/v1/search", `{not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSearchEndpointRejectsInvertedWindow(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.server.URL+"/api/v1/search",
		`{"start":"2026-03-08T00:00:00Z","end":"2026-03-07T00:00:00Z"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestResolveTimeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/api/v1/time/resolve", `{"phrase":"tomorrow night"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if !out.Success {
		t.Fatalf("unexpected error: %+v", out.Error)
	}
}

func TestResolveTimeRequiresPhrase(t *testing.T) {
	env := newTestEnv(t)
	resp := postJSON(t, env.server.URL+"/api/v1/time/resolve", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestSourcesEndpoint(t *testing.T) {
	env := newTestEnv(t,
		&testSource{name: "up", available: true},
		&testSource{name: "down", available: false},
	)

	resp, err := http.Get(env.server.URL + "/api/v1/sources")
	if err != nil {
		t.Fatalf("GET sources: %v", err)
	}
	out := decodeResponse(t, resp)

	data, _ := json.Marshal(out.Data)
	var body struct {
		Sources []sourceInfo `json:"sources"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode sources: %v", err)
	}
	if len(body.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(body.Sources))
	}
	for _, s := range body.Sources {
		if s.Name == "down" && s.Available {
			t.Error("down source reported available")
		}
	}
}

func TestEventsEndpointReadsCache(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.store.UpsertEvents([]models.EventRecord{
		{Source: "local", ExternalID: "1", Title: "Cached Thing"},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	resp, err := http.Get(env.server.URL + "/api/v1/events?source=local")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	out := decodeResponse(t, resp)

	data, _ := json.Marshal(out.Data)
	var body struct {
		Events []models.EventRecord `json:"events"`
		Count  int                  `json:"count"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if body.Count != 1 || body.Events[0].Title != "Cached Thing" {
		t.Errorf("body = %+v", body)
	}
}

func TestEventsEndpointWindowAndLocationFilters(t *testing.T) {
	env := newTestEnv(t)

	early := time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC)
	late := time.Date(2026, 9, 20, 20, 0, 0, 0, time.UTC)
	if _, err := env.store.UpsertEvents([]models.EventRecord{
		{Source: "local", ExternalID: "1", Title: "Early Show", StartTime: &early, Location: "Kreuzberg, Berlin"},
		{Source: "local", ExternalID: "2", Title: "Late Show", StartTime: &late, Location: "Mitte, Berlin"},
		{Source: "local", ExternalID: "3", Title: "Undated Show", Location: "Hamburg"},
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	tests := []struct {
		name       string
		query      string
		wantTitles []string
	}{
		{
			name:       "after excludes earlier starts",
			query:      "?after=2026-09-10T00:00:00Z",
			wantTitles: []string{"Late Show", "Undated Show"},
		},
		{
			name:       "before excludes later starts",
			query:      "?before=2026-09-10T00:00:00Z",
			wantTitles: []string{"Early Show", "Undated Show"},
		},
		{
			name:       "location substring match",
			query:      "?location=berlin",
			wantTitles: []string{"Early Show", "Late Show"},
		},
		{
			name:       "combined window and location",
			query:      "?after=2026-09-10T00:00:00Z&location=berlin",
			wantTitles: []string{"Late Show"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(env.server.URL + "/api/v1/events" + tt.query)
			if err != nil {
				t.Fatalf("GET events: %v", err)
			}
			out := decodeResponse(t, resp)

			data, _ := json.Marshal(out.Data)
			var body struct {
				Events []models.EventRecord `json:"events"`
			}
			if err := json.Unmarshal(data, &body); err != nil {
				t.Fatalf("decode events: %v", err)
			}
			got := make([]string, len(body.Events))
			for i := range body.Events {
				got[i] = body.Events[i].Title
			}
			if len(got) != len(tt.wantTitles) {
				t.Fatalf("titles = %v, want %v", got, tt.wantTitles)
			}
			for i := range got {
				if got[i] != tt.wantTitles[i] {
					t.Errorf("titles = %v, want %v", got, tt.wantTitles)
					break
				}
			}
		})
	}
}

func TestEventsEndpointRejectsBadTimestamp(t *testing.T) {
	env := newTestEnv(t)
	for _, query := range []string{"?after=next-tuesday", "?before=20260901"} {
		resp, err := http.Get(env.server.URL + "/api/v1/events" + query)
		if err != nil {
			t.Fatalf("GET events: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", query, resp.StatusCode)
		}
	}
}

func TestEventsEndpointRejectsBadLimit(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.server.URL + "/api/v1/events?limit=boom")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestDiscoveryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := postJSON(t, env.server.URL+"/api/v1/discovery/sess-1", `{"keywords":["warehouse","parties"],"categories":["music"]}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	var body struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.JobID != "job-1" {
		t.Errorf("job_id = %s", body.JobID)
	}

	// The handler forwards the profile, filling in the configured city
	// when the request names no location.
	if len(env.discovery.profiles) != 1 {
		t.Fatalf("profiles = %v", env.discovery.profiles)
	}
	profile := env.discovery.profiles[0]
	if len(profile.Keywords) != 2 || profile.Keywords[0] != "warehouse" {
		t.Errorf("keywords = %v", profile.Keywords)
	}
	if len(profile.Categories) != 1 || profile.Categories[0] != "music" {
		t.Errorf("categories = %v", profile.Categories)
	}
	if profile.Location != env.cfg.Search.City {
		t.Errorf("location = %q, want default city %q", profile.Location, env.cfg.Search.City)
	}

	req, _ := http.NewRequest(http.MethodDelete, env.server.URL+"/api/v1/discovery/sess-1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE discovery: %v", err)
	}
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", delResp.StatusCode)
	}
	_ = delResp.Body.Close()

	if len(env.discovery.cancelled) != 1 || env.discovery.cancelled[0] != "sess-1" {
		t.Errorf("cancelled = %v", env.discovery.cancelled)
	}
}

func TestDiscoveryStartFailureIs503(t *testing.T) {
	env := newTestEnv(t)
	env.discovery.startOK = false

	resp := postJSON(t, env.server.URL+"/api/v1/discovery/sess-1", `{"keywords":["anything"]}`)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	_ = resp.Body.Close()
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, &testSource{name: "up", available: true})

	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if !out.Success {
		t.Errorf("health not successful: %+v", out.Error)
	}
}

func TestCachePurgeEndpoint(t *testing.T) {
	env := newTestEnv(t)
	expired := models.CacheEntry{
		EventRecord: models.EventRecord{Source: "local", ExternalID: "old", Title: "Bygone"},
		CachedAt:    time.Now().Add(-48 * time.Hour),
		ExpiresAt:   time.Now().Add(-24 * time.Hour),
	}
	if err := env.store.Upsert(expired); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp := postJSON(t, env.server.URL+"/api/v1/cache/expired", `{}`)
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	var body struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Deleted != 1 {
		t.Errorf("deleted = %d, want 1", body.Deleted)
	}
}
