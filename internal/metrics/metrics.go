// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package metrics exposes Prometheus instrumentation for the discovery
// pipeline: per-source fetch behavior, aggregation outcomes, cache
// activity, background discovery jobs, and session push delivery.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source fetch metrics
	SourceFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventscout_source_fetch_duration_seconds",
			Help:    "Duration of one source fetch during fan-out",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
		},
		[]string{"source"},
	)

	SourceFetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_source_fetch_outcomes_total",
			Help: "Per-source fetch outcomes",
		},
		[]string{"source", "outcome"}, // "ok", "empty", "error", "timeout", "panic"
	)

	SourceEventsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_source_events_returned_total",
			Help: "Events returned by each source before dedup",
		},
		[]string{"source"},
	)

	// Aggregation metrics
	AggregationSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_aggregation_searches_total",
			Help: "Aggregated searches by terminal state",
		},
		[]string{"state"}, // "ok", "no_match", "unavailable"
	)

	AggregationResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eventscout_aggregation_result_size",
			Help:    "Events in the final deduplicated, capped result",
			Buckets: []float64{0, 1, 2, 5, 10, 15},
		},
	)

	DedupDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventscout_dedup_dropped_total",
			Help: "Events dropped by title deduplication",
		},
	)

	// Cache metrics
	CacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_cache_ops_total",
			Help: "Event cache operations",
		},
		[]string{"op", "status"}, // op: "upsert", "search", "delete_expired", "clear"
	)

	CacheEntriesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventscout_cache_entries_deleted_total",
			Help: "Expired entries removed by the janitor",
		},
	)

	// Background discovery metrics
	DiscoveryJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventscout_discovery_jobs_active",
			Help: "Deep-discovery jobs currently polling",
		},
	)

	DiscoveryJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_discovery_jobs_total",
			Help: "Deep-discovery jobs by terminal state",
		},
		[]string{"state"}, // "completed", "failed", "timed_out", "cancelled"
	)

	DiscoveryPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventscout_discovery_polls_total",
			Help: "Remote status polls across all discovery jobs",
		},
	)

	// Session push metrics
	PushSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventscout_push_sessions_active",
			Help: "Sessions with a live push connection",
		},
	)

	PushMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_push_messages_total",
			Help: "Out-of-band messages by delivery status",
		},
		[]string{"status"}, // "delivered", "dropped", "no_connection"
	)

	// Circuit breaker metrics (one series per wrapped source)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eventscout_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventscout_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "path", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventscout_api_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
