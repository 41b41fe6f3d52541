// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package sources defines the event source contract and the registry of
// configured adapters. One concrete type per third-party integration
// implements Source; the registry decouples "does this source exist" from
// "is it currently usable", so integrations without credentials simply
// disappear from fan-out instead of being special-cased at call sites.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/eventscout/internal/models"
)

// ErrDuplicateSource is returned when registering a name twice.
var ErrDuplicateSource = errors.New("sources: duplicate source name")

// Source is one third-party event integration normalized to a common
// fetch contract.
type Source interface {
	// Name uniquely identifies the source; it appears in attribution
	// strings and as the cache key namespace.
	Name() string

	// Description is a short human-readable summary.
	Description() string

	// Priority orders sources in tie-breaks; lower is earlier.
	Priority() int

	// Available reports whether the source can be queried right now.
	// Must be cheap and synchronous - typically "is a credential
	// configured" - and must never perform I/O.
	Available() bool

	// Fetch runs the search and returns normalized events. Errors are
	// expected and contained by the aggregation layer; an adapter never
	// needs to swallow its own failures.
	Fetch(ctx context.Context, req models.SearchRequest) ([]models.EventRecord, error)
}

// Registry holds the configured sources. Registration is a one-time
// startup operation; lookups dominate afterwards.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds a source. Registering an already-present name fails with
// ErrDuplicateSource.
func (r *Registry) Register(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if _, exists := r.sources[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSource, name)
	}
	r.sources[name] = src
	return nil
}

// Get returns the named source.
func (r *Registry) Get(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	return src, ok
}

// Available returns the sources whose availability predicate holds right
// now, ordered by priority then name. Called once per search request.
func (r *Registry) Available() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Source
	for _, src := range r.sources {
		if src.Available() {
			out = append(out, src)
		}
	}
	sortSources(out)
	return out
}

// All returns every registered source, available or not, ordered by
// priority then name.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Source, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, src)
	}
	sortSources(out)
	return out
}

func sortSources(s []Source) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Priority() != s[j].Priority() {
			return s[i].Priority() < s[j].Priority()
		}
		return s[i].Name() < s[j].Name()
	})
}
