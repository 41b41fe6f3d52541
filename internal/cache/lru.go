// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package cache

import (
	"sync"
	"time"
)

// lruEntry is a node in the seen-set's doubly-linked list.
type lruEntry struct {
	key       string
	prev      *lruEntry
	next      *lruEntry
	expiresAt time.Time
}

// SeenSet is a thread-safe bounded set with TTL, used to remember which
// items were already delivered (e.g. deep-discovery results pushed to a
// session). O(1) membership, insertion, and eviction via a hashmap plus
// doubly-linked recency list.
type SeenSet struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration

	items map[string]*lruEntry

	// head.next is most recently used, tail.prev least recently used.
	head *lruEntry
	tail *lruEntry
}

// NewSeenSet creates a SeenSet with the given capacity and TTL.
func NewSeenSet(capacity int, ttl time.Duration) *SeenSet {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	s := &SeenSet{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruEntry, capacity),
		head:     &lruEntry{},
		tail:     &lruEntry{},
	}
	s.head.next = s.tail
	s.tail.prev = s.head
	return s
}

// Seen atomically reports whether key was already present and unexpired,
// marking it seen either way. The check-and-mark is a single critical
// section so concurrent callers cannot both observe "new".
func (s *SeenSet) Seen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if entry, ok := s.items[key]; ok {
		if now.Before(entry.expiresAt) {
			entry.expiresAt = now.Add(s.ttl)
			s.moveToFront(entry)
			return true
		}
		s.remove(entry)
	}

	s.add(key, now.Add(s.ttl))
	return false
}

// Contains reports membership without marking.
func (s *SeenSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.items[key]
	return ok && time.Now().Before(entry.expiresAt)
}

// Len returns the current number of entries, expired ones included until
// cleanup.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// CleanupExpired removes expired entries and returns how many were removed.
func (s *SeenSet) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for entry := s.tail.prev; entry != s.head; {
		prev := entry.prev
		if !now.Before(entry.expiresAt) {
			s.remove(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// add inserts a new entry at the front, evicting the least recently used
// entry when at capacity. Caller must hold mu.
func (s *SeenSet) add(key string, expiresAt time.Time) {
	if len(s.items) >= s.capacity {
		if lru := s.tail.prev; lru != s.head {
			s.remove(lru)
		}
	}

	entry := &lruEntry{key: key, expiresAt: expiresAt}
	s.items[key] = entry
	s.pushFront(entry)
}

// remove unlinks an entry. Caller must hold mu.
func (s *SeenSet) remove(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(s.items, entry.key)
}

// moveToFront marks an entry most recently used. Caller must hold mu.
func (s *SeenSet) moveToFront(entry *lruEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	s.pushFront(entry)
}

// pushFront links an entry directly after head. Caller must hold mu.
func (s *SeenSet) pushFront(entry *lruEntry) {
	entry.next = s.head.next
	entry.prev = s.head
	s.head.next.prev = entry
	s.head.next = entry
}
