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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/eventscout/internal/config"
	"github.com/tomtom215/eventscout/internal/metrics"
)

// NewRouter assembles the HTTP surface.
func NewRouter(cfg *config.Config, h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Push transports stay outside the rate limiter: they are
	// long-lived, one per session, and self-limiting.
	r.Get("/ws/{sessionID}", h.WebSocket)
	r.Get("/api/v1/stream/{sessionID}", h.Stream)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.Server.RateLimitReqs, cfg.Server.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Post("/search", h.Search)
		r.Post("/time/resolve", h.ResolveTime)
		r.Get("/sources", h.Sources)
		r.Get("/events", h.Events)
		r.Get("/cache/stats", h.CacheStats)
		r.Post("/cache/expired", h.PurgeExpired)
		r.Post("/discovery/{sessionID}", h.StartDiscovery)
		r.Delete("/discovery/{sessionID}", h.CancelDiscovery)
	})

	return r
}

// prometheusMetrics records request counts and latency per route
// pattern. Patterns, not raw paths, keep the label cardinality bounded.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
