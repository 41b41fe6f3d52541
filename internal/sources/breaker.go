// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package sources

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/metrics"
	"github.com/tomtom215/eventscout/internal/models"
)

// BreakerSource wraps a live Source with a circuit breaker so a
// persistently failing upstream API stops consuming fan-out time.
// Configuration:
//   - max 3 concurrent requests in half-open state
//   - 1 minute measurement window in closed state
//   - 2 minute timeout before attempting recovery
//   - opens at >= 60% failure rate with a minimum of 5 requests
//
// The breaker uses real time for its interval and timeout calculations;
// tests should exercise the wrapped source directly.
type BreakerSource struct {
	Source
	cb *gobreaker.CircuitBreaker[[]models.EventRecord]
}

// WithBreaker wraps src with a named circuit breaker.
func WithBreaker(src Source) *BreakerSource {
	name := src.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]models.EventRecord](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("source", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("source circuit breaker state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &BreakerSource{Source: src, cb: cb}
}

// Fetch runs the wrapped fetch under breaker protection. A rejected call
// (open circuit) surfaces as an ordinary error; the aggregation layer
// treats it like any other source failure.
func (b *BreakerSource) Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error) {
	return b.cb.Execute(func() ([]models.EventRecord, error) {
		return b.Source.Fetch(ctx, req)
	})
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
