// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package services

import (
	"context"
	"time"

	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/metrics"
)

// ExpiredDeleter is the slice of the cache store the janitor needs.
type ExpiredDeleter interface {
	DeleteExpired() (int, error)
}

// JanitorService periodically deletes expired cache entries. Reads
// already skip expired rows, so the janitor only reclaims disk; a
// missed run is harmless.
type JanitorService struct {
	store    ExpiredDeleter
	interval time.Duration
}

// NewJanitorService creates the janitor. Zero interval defaults to one
// hour.
func NewJanitorService(store ExpiredDeleter, interval time.Duration) *JanitorService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &JanitorService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deleted, err := j.store.DeleteExpired()
			if err != nil {
				logging.Error().Err(err).Msg("cache janitor sweep failed")
				continue
			}
			if deleted > 0 {
				metrics.CacheEntriesDeleted.Add(float64(deleted))
				logging.Info().Int("deleted", deleted).Msg("cache janitor removed expired events")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (j *JanitorService) String() string {
	return "cache-janitor"
}
