// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package cache provides the durable event cache backing the discovery
// pipeline, plus small in-process caching structures.
//
// The event cache is a BadgerDB-backed store keyed by (source, external
// id). Upserts are idempotent full overwrites; reads exclude expired rows
// unless asked otherwise. All TTL comparisons use a single UTC wall clock
// for both writes and reads.
package cache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscout/internal/metrics"
	"github.com/tomtom215/eventscout/internal/models"
)

// eventKeyPrefix namespaces event rows in BadgerDB.
const eventKeyPrefix = "event:"

// ErrIntegrity marks a stored row that can no longer be decoded. This is
// a storage-layer fault, fatal to the query that hit it but contained
// there - the rest of the cache stays usable.
var ErrIntegrity = errors.New("cache: malformed stored entry")

// Store is the durable event cache. Safe for concurrent use; Badger
// provides per-key atomicity, concurrent upserts to the same key race on
// last-write-wins with no merge.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Options configures a Store.
type Options struct {
	// Path is the BadgerDB directory. Empty means in-memory.
	Path string

	// TTL applied to entries upserted without an explicit ExpiresAt.
	TTL time.Duration
}

// Open creates or opens the event cache.
func Open(opts Options) (*Store, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}

	var badgerOpts badger.Options
	if opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Path)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open event cache: %w", err)
	}

	return &Store{db: db, ttl: opts.TTL}, nil
}

// NewWithDB wraps an already-open Badger handle. The caller keeps
// ownership of the handle's lifecycle.
func NewWithDB(db *badger.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{db: db, ttl: ttl}
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// TTL returns the default entry time-to-live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func eventKey(source, externalID string) []byte {
	return []byte(eventKeyPrefix + source + ":" + externalID)
}

// Upsert inserts or fully replaces the entry keyed by (source, external
// id). CachedAt defaults to now and ExpiresAt to CachedAt+TTL when unset.
// Re-upserting the same key overwrites every field; there is no partial
// merge.
func (s *Store) Upsert(entry models.CacheEntry) error {
	if entry.Source == "" || entry.ExternalID == "" {
		return fmt.Errorf("cache: entry missing source or external id")
	}

	entry.Normalize()
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.CachedAt.Add(s.ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(entry.Source, entry.ExternalID), data)
	})
	metrics.CacheOps.WithLabelValues("upsert", opStatus(err)).Inc()
	return err
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// UpsertMany upserts a batch and returns how many entries were written.
// A failing entry aborts the remainder; earlier writes stay committed.
func (s *Store) UpsertMany(entries []models.CacheEntry) (int, error) {
	for i := range entries {
		if err := s.Upsert(entries[i]); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// UpsertEvents wraps raw event records in cache entries and upserts them.
func (s *Store) UpsertEvents(events []models.EventRecord) (int, error) {
	entries := make([]models.CacheEntry, len(events))
	for i, ev := range events {
		entries[i] = models.CacheEntry{EventRecord: ev}
	}
	return s.UpsertMany(entries)
}

// SearchOptions filters a cache search. Zero values mean "no filter".
type SearchOptions struct {
	// Sources restricts results to the named sources.
	Sources []string

	// StartAfter/StartBefore bound the event StartTime. Events without a
	// start time pass both bounds.
	StartAfter  time.Time
	StartBefore time.Time

	// LocationContains is a case-insensitive substring match.
	LocationContains string

	IncludeExpired bool

	// Limit caps results; 0 means unlimited.
	Limit int
}

// Search returns cached events ordered by StartTime ascending, entries
// without a start time last. Expired rows are excluded unless
// IncludeExpired is set.
func (s *Store) Search(opts SearchOptions) ([]models.CacheEntry, error) {
	var sourceSet map[string]bool
	if len(opts.Sources) > 0 {
		sourceSet = make(map[string]bool, len(opts.Sources))
		for _, src := range opts.Sources {
			sourceSet[src] = true
		}
	}

	now := time.Now().UTC()
	var results []models.CacheEntry

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var entry models.CacheEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("%w: key %s: %v", ErrIntegrity, item.Key(), err)
			}

			if !opts.IncludeExpired && entry.Expired(now) {
				continue
			}
			if sourceSet != nil && !sourceSet[entry.Source] {
				continue
			}
			if !matchesWindow(&entry, opts.StartAfter, opts.StartBefore) {
				continue
			}
			if opts.LocationContains != "" &&
				!strings.Contains(strings.ToLower(entry.Location), strings.ToLower(opts.LocationContains)) {
				continue
			}

			results = append(results, entry)
		}
		return nil
	})
	metrics.CacheOps.WithLabelValues("search", opStatus(err)).Inc()
	if err != nil {
		return nil, err
	}

	sortByStartTime(results)

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func matchesWindow(entry *models.CacheEntry, after, before time.Time) bool {
	if entry.StartTime == nil {
		return true
	}
	if !after.IsZero() && entry.StartTime.Before(after) {
		return false
	}
	if !before.IsZero() && entry.StartTime.After(before) {
		return false
	}
	return true
}

// sortByStartTime orders entries ascending; entries lacking a start time
// sort after all entries that have one.
func sortByStartTime(entries []models.CacheEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].StartTime, entries[j].StartTime
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}

// GetBySource returns cached entries for one source.
func (s *Store) GetBySource(source string, includeExpired bool, limit int) ([]models.CacheEntry, error) {
	return s.Search(SearchOptions{
		Sources:        []string{source},
		IncludeExpired: includeExpired,
		Limit:          limit,
	})
}

// Get fetches one entry by key. Returns (nil, nil) when absent.
func (s *Store) Get(source, externalID string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventKey(source, externalID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err != nil {
			return fmt.Errorf("get cache entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			if uerr := json.Unmarshal(val, &entry); uerr != nil {
				return fmt.Errorf("%w: key %s: %v", ErrIntegrity, eventKey(source, externalID), uerr)
			}
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteExpired removes exactly the expired rows and returns how many.
func (s *Store) DeleteExpired() (int, error) {
	now := time.Now().UTC()
	var expired [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			var entry models.CacheEntry
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("%w: key %s: %v", ErrIntegrity, item.Key(), err)
			}

			if entry.Expired(now) {
				expired = append(expired, item.KeyCopy(nil))
			}
		}
		return nil
	})
	metrics.CacheOps.WithLabelValues("delete_expired", opStatus(err)).Inc()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, key := range expired {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Clear removes all entries, or only one source's entries when source is
// non-empty. Returns the number removed.
func (s *Store) Clear(source string) (int, error) {
	prefix := []byte(eventKeyPrefix)
	if source != "" {
		prefix = []byte(eventKeyPrefix + source + ":")
	}

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	metrics.CacheOps.WithLabelValues("clear", opStatus(err)).Inc()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, key := range keys {
		err := s.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// Count returns the number of rows, optionally restricted to one source.
// Expired rows are counted; they still occupy storage until the janitor
// removes them.
func (s *Store) Count(source string) (int, error) {
	prefix := []byte(eventKeyPrefix)
	if source != "" {
		prefix = []byte(eventKeyPrefix + source + ":")
	}

	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
