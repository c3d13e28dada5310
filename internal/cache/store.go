// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// Clock returns the current time. Tests inject a fake one.
type Clock func() time.Time

// Entry is a cached value with the time it was stored and its TTL.
type Entry struct {
	Value    any
	StoredAt time.Time
	TTL      time.Duration
}

// Valid reports whether the entry is still servable at now.
// An entry is valid iff now - StoredAt <= TTL.
func (e Entry) Valid(now time.Time) bool {
	return now.Sub(e.StoredAt) <= e.TTL
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	TotalKeys int64
}

// Store is a thread-safe key -> Entry map with lazy expiry.
//
// Expired entries are removed when Get or Has observes them; there is no
// background sweep. All operations are total: nothing here returns an error.
//
// Example:
//
//	s := cache.NewStore()
//	s.Set("projects|[]", projects, 5*time.Minute)
//	if v, ok := s.Get("projects|[]"); ok {
//	    return v.([]models.Project)
//	}
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     Clock
	name    string

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(now Clock) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithName sets the cache_type label used for Prometheus metrics.
func WithName(name string) StoreOption {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
		name:    "query",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores value under key for ttl, replacing any previous entry.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	s.entries[key] = Entry{Value: value, StoredAt: s.now(), TTL: ttl}
	n := len(s.entries)
	s.mu.Unlock()

	metrics.CacheSize.WithLabelValues(s.name).Set(float64(n))
}

// Get returns the value stored under key. An expired entry is evicted and
// reported as a miss.
func (s *Store) Get(key string) (any, bool) {
	entry, ok := s.lookup(key)
	if !ok {
		s.recordMiss()
		return nil, false
	}
	s.recordHit()
	return entry.Value, true
}

// Has reports whether key holds a valid entry, evicting it if expired.
// It does not count towards hit/miss statistics.
func (s *Store) Has(key string) bool {
	_, ok := s.lookup(key)
	return ok
}

// Entry returns the full entry for key if it is still valid.
func (s *Store) Entry(key string) (Entry, bool) {
	return s.lookup(key)
}

func (s *Store) lookup(key string) (Entry, bool) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()
	if !exists {
		return Entry{}, false
	}

	now := s.now()
	if entry.Valid(now) {
		return entry, true
	}

	// Re-check under the write lock: a concurrent Set may have replaced it.
	s.mu.Lock()
	current, still := s.entries[key]
	if still && !current.Valid(now) {
		delete(s.entries, key)
		s.mu.Unlock()
		s.recordEvictions(1)
		return Entry{}, false
	}
	s.mu.Unlock()
	if still {
		return current, true
	}
	return Entry{}, false
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	_, existed := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if existed {
		s.recordEvictions(1)
	}
}

// DeletePrefix removes every key starting with prefix and returns how many
// were removed.
func (s *Store) DeletePrefix(prefix string) int {
	s.mu.Lock()
	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.recordEvictions(removed)
	}
	return removed
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	n := len(s.entries)
	s.entries = make(map[string]Entry)
	s.mu.Unlock()

	if n > 0 {
		s.recordEvictions(n)
	}
}

// Len returns the number of stored entries, including expired ones that
// have not been observed yet.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stats returns a snapshot of the counters.
func (s *Store) Stats() Stats {
	return Stats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
		TotalKeys: int64(s.Len()),
	}
}

// HitRate returns the hit rate as a percentage.
func (s *Store) HitRate() float64 {
	stats := s.Stats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

func (s *Store) recordHit() {
	s.hits.Add(1)
	metrics.CacheHits.WithLabelValues(s.name).Inc()
}

func (s *Store) recordMiss() {
	s.misses.Add(1)
	metrics.CacheMisses.WithLabelValues(s.name).Inc()
}

func (s *Store) recordEvictions(n int) {
	s.evictions.Add(int64(n))
	metrics.CacheEvictions.WithLabelValues(s.name).Add(float64(n))
	metrics.CacheSize.WithLabelValues(s.name).Set(float64(s.Len()))
}
