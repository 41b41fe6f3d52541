// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscout/internal/aggregate"
	"github.com/tomtom215/eventscout/internal/cache"
	"github.com/tomtom215/eventscout/internal/config"
	"github.com/tomtom215/eventscout/internal/models"
	"github.com/tomtom215/eventscout/internal/push"
	"github.com/tomtom215/eventscout/internal/sources"
	"github.com/tomtom215/eventscout/internal/temporal"
)

// maxRequestBody caps decoded JSON bodies.
const maxRequestBody = 64 * 1024 // 64 KB

var validate = validator.New()

// DiscoveryManager is the slice of the discovery manager the handlers
// need. Satisfied by *discovery.Manager.
type DiscoveryManager interface {
	StartDiscovery(sessionID string, profile models.SearchRequest) (string, bool)
	CancelSessionTasks(sessionID string)
	ActiveJobs() int
}

// Handler carries the wired components behind the HTTP surface.
type Handler struct {
	cfg       *config.Config
	engine    *aggregate.Engine
	resolver  *temporal.Resolver
	store     *cache.Store
	registry  *sources.Registry
	discovery DiscoveryManager
	hub       *push.Hub
}

// NewHandler wires the handler. discovery may be nil when deep
// discovery is not configured; the endpoints then answer 503.
func NewHandler(cfg *config.Config, engine *aggregate.Engine, resolver *temporal.Resolver, store *cache.Store, registry *sources.Registry, discovery DiscoveryManager, hub *push.Hub) *Handler {
	return &Handler{
		cfg:       cfg,
		engine:    engine,
		resolver:  resolver,
		store:     store,
		registry:  registry,
		discovery: discovery,
		hub:       hub,
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	rw := NewResponseWriter(w, r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.BadRequest("invalid JSON body: " + err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		rw.ErrorWithDetails(http.StatusBadRequest, ErrCodeValidationFailed, "request validation failed", err.Error())
		return false
	}
	return true
}

// searchRequest is the POST /api/v1/search body. Either When (a natural
// language phrase) or explicit Start/End bounds may be given; When wins
// when both are present.
type searchRequest struct {
	When       string     `json:"when" validate:"max=200"`
	Start      *time.Time `json:"start"`
	End        *time.Time `json:"end"`
	Keywords   []string   `json:"keywords" validate:"max=10,dive,max=100"`
	Categories []string   `json:"categories" validate:"max=10,dive,max=50"`
	FreeOnly   bool       `json:"free_only"`
	Location   string     `json:"location" validate:"max=128"`
}

// searchResponse pairs the aggregation result with how the time phrase
// was understood, so a conversational client can show its work.
type searchResponse struct {
	models.AggregatedResult
	ResolvedWindow *temporal.Result `json:"resolved_window,omitempty"`
}

// clarificationResponse is returned instead of results when the time
// phrase was too ambiguous to act on.
type clarificationResponse struct {
	NeedsClarification bool   `json:"needs_clarification"`
	Question           string `json:"question"`
	Phrase             string `json:"phrase"`
}

// Search handles POST /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body searchRequest
	if !h.decode(w, r, &body) {
		return
	}

	req := models.SearchRequest{
		Keywords:   body.Keywords,
		Categories: body.Categories,
		FreeOnly:   body.FreeOnly,
		Location:   body.Location,
	}
	if req.Location == "" {
		req.Location = h.cfg.Search.City
	}

	var resolved *temporal.Result
	switch {
	case body.When != "":
		res := h.resolver.Resolve(body.When, time.Now().In(h.cfg.Location()))
		if res.NeedsClarification {
			rw.Success(clarificationResponse{
				NeedsClarification: true,
				Question:           res.Question,
				Phrase:             res.Phrase,
			})
			return
		}
		resolved = &res
		req.TimeWindow = &models.TimeWindow{Start: res.Start, End: res.End}
	case body.Start != nil && body.End != nil:
		if body.End.Before(*body.Start) {
			rw.BadRequest("end must not be before start")
			return
		}
		req.TimeWindow = &models.TimeWindow{Start: *body.Start, End: *body.End}
	}

	result := h.engine.Search(r.Context(), req)
	rw.Success(searchResponse{AggregatedResult: result, ResolvedWindow: resolved})
}

// resolveRequest is the POST /api/v1/time/resolve body.
type resolveRequest struct {
	Phrase string `json:"phrase" validate:"required,max=200"`
}

// ResolveTime handles POST /api/v1/time/resolve.
func (h *Handler) ResolveTime(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var body resolveRequest
	if !h.decode(w, r, &body) {
		return
	}

	res := h.resolver.Resolve(body.Phrase, time.Now().In(h.cfg.Location()))
	rw.Success(res)
}

// sourceInfo describes one registered source.
type sourceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
	Available   bool   `json:"available"`
}

// Sources handles GET /api/v1/sources.
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	all := h.registry.All()
	infos := make([]sourceInfo, 0, len(all))
	for _, src := range all {
		infos = append(infos, sourceInfo{
			Name:        src.Name(),
			Description: src.Description(),
			Priority:    src.Priority(),
			Available:   src.Available(),
		})
	}
	rw.Success(map[string]any{"sources": infos})
}

// Events handles GET /api/v1/events: a direct cache read. Query
// parameters: source, after, before (RFC3339), location, limit,
// include_expired.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			rw.BadRequest("limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	opts := cache.SearchOptions{Limit: limit}
	if source := r.URL.Query().Get("source"); source != "" {
		opts.Sources = []string{source}
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			rw.BadRequest("after must be an RFC3339 timestamp")
			return
		}
		opts.StartAfter = ts
	}
	if raw := r.URL.Query().Get("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			rw.BadRequest("before must be an RFC3339 timestamp")
			return
		}
		opts.StartBefore = ts
	}
	opts.LocationContains = r.URL.Query().Get("location")
	opts.IncludeExpired = r.URL.Query().Get("include_expired") == "true"

	entries, err := h.store.Search(opts)
	if err != nil {
		rw.InternalError("cache query failed")
		return
	}

	events := make([]models.EventRecord, 0, len(entries))
	for i := range entries {
		events = append(events, entries[i].EventRecord)
	}
	rw.Success(map[string]any{"events": events, "count": len(events)})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	counts := make(map[string]int)
	total := 0
	for _, src := range h.registry.All() {
		n, err := h.store.Count(src.Name())
		if err != nil {
			rw.InternalError("cache count failed")
			return
		}
		counts[src.Name()] = n
		total += n
	}

	rw.Success(map[string]any{
		"total":     total,
		"by_source": counts,
		"ttl":       h.store.TTL().String(),
	})
}

// PurgeExpired handles POST /api/v1/cache/expired: deletes expired rows
// and reports how many went away.
func (h *Handler) PurgeExpired(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	deleted, err := h.store.DeleteExpired()
	if err != nil {
		rw.InternalError("cache purge failed")
		return
	}
	rw.Success(map[string]any{"deleted": deleted})
}

// discoveryRequest is the POST /api/v1/discovery/{sessionID} body: the
// search profile the background job keeps working on.
type discoveryRequest struct {
	Keywords   []string `json:"keywords,omitempty" validate:"max=10,dive,max=100"`
	Categories []string `json:"categories,omitempty" validate:"max=10,dive,max=50"`
	Location   string   `json:"location,omitempty" validate:"max=200"`
	FreeOnly   bool     `json:"free_only,omitempty"`
}

// StartDiscovery handles POST /api/v1/discovery/{sessionID}. Answers
// 202 with the job ID, or 503 when the job could not be created.
func (h *Handler) StartDiscovery(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sessionID := chi.URLParam(r, "sessionID")
	if h.discovery == nil {
		rw.ServiceUnavailable("deep discovery is not configured")
		return
	}

	var body discoveryRequest
	if !h.decode(w, r, &body) {
		return
	}

	profile := models.SearchRequest{
		Keywords:   body.Keywords,
		Categories: body.Categories,
		Location:   body.Location,
		FreeOnly:   body.FreeOnly,
	}
	if profile.Location == "" {
		profile.Location = h.cfg.Search.City
	}

	jobID, ok := h.discovery.StartDiscovery(sessionID, profile)
	if !ok {
		rw.ServiceUnavailable("deep discovery could not be started")
		return
	}
	rw.Accepted(map[string]any{"job_id": jobID, "session_id": sessionID})
}

// CancelDiscovery handles DELETE /api/v1/discovery/{sessionID}.
func (h *Handler) CancelDiscovery(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.discovery == nil {
		rw.ServiceUnavailable("deep discovery is not configured")
		return
	}
	h.discovery.CancelSessionTasks(chi.URLParam(r, "sessionID"))
	rw.NoContent()
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	activeJobs := 0
	if h.discovery != nil {
		activeJobs = h.discovery.ActiveJobs()
	}
	rw.Success(map[string]any{
		"status":            "ok",
		"available_sources": len(h.registry.Available()),
		"active_jobs":       activeJobs,
	})
}
