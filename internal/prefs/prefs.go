// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package prefs is the durable per-user preference cache: dashboard view
// state, recent searches and small settings that must survive restarts.
//
// Reads never fail. A missing, expired or unreadable record, or a medium
// that is unavailable, yields the caller's fallback and a warning log.
package prefs

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

const (
	keyPrefix = "prefs:"

	// DefaultTTL applies to Write when no WithDefaultTTL option is given.
	DefaultTTL = 30 * 24 * time.Hour
)

// record is the persisted form. StoredAt is unix milliseconds so age can be
// computed after a restart.
type record struct {
	Value    json.RawMessage `json:"value"`
	StoredAt int64           `json:"stored_at"`
	TTLMS    int64           `json:"ttl_ms"`
}

// Cache reads and writes TTL-bounded records on a Medium.
type Cache struct {
	medium      Medium
	ttl         time.Duration
	recentLimit int
	now         func() time.Time
	logger      zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL sets the TTL used by Write.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithRecentSearchLimit sets the capacity of recent-search lists.
func WithRecentSearchLimit(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.recentLimit = n
		}
	}
}

// New creates a Cache on medium. A nil medium is allowed: every read
// returns its fallback and every write is dropped with a warning.
func New(medium Medium, opts ...Option) *Cache {
	c := &Cache{
		medium:      medium,
		ttl:         DefaultTTL,
		recentLimit: DefaultRecentSearchLimit,
		now:         time.Now,
		logger:      logging.WithComponent("prefs"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the value stored under key, or fallback when the record is
// missing, expired, unparsable or the medium fails. Expired records are
// deleted.
func Read[T any](c *Cache, key string, fallback T) T {
	if c == nil || c.medium == nil {
		return fallback
	}
	storageKey := keyPrefix + key

	raw, err := c.medium.Get(storageKey)
	if errors.Is(err, ErrNotFound) {
		metrics.CacheMisses.WithLabelValues("prefs").Inc()
		return fallback
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference medium unavailable, using fallback")
		return fallback
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference record unparsable, using fallback")
		return fallback
	}

	age := c.now().Sub(time.UnixMilli(rec.StoredAt))
	if age > time.Duration(rec.TTLMS)*time.Millisecond {
		c.remove(storageKey, key)
		metrics.CacheEvictions.WithLabelValues("prefs").Inc()
		metrics.CacheMisses.WithLabelValues("prefs").Inc()
		return fallback
	}

	var value T
	if err := json.Unmarshal(rec.Value, &value); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference value has unexpected shape, using fallback")
		return fallback
	}
	metrics.CacheHits.WithLabelValues("prefs").Inc()
	return value
}

// Write stores value under key with the default TTL.
func (c *Cache) Write(key string, value any) {
	c.WriteTTL(key, value, c.ttl)
}

// WriteTTL stores value under key with ttl. Failures are logged.
func (c *Cache) WriteTTL(key string, value any, ttl time.Duration) {
	if c == nil || c.medium == nil {
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference value not encodable, dropped")
		return
	}
	raw, err := json.Marshal(record{
		Value:    encoded,
		StoredAt: c.now().UnixMilli(),
		TTLMS:    ttl.Milliseconds(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference record not encodable, dropped")
		return
	}
	if err := c.medium.Set(keyPrefix+key, raw, ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference write failed")
	}
}

// Remove deletes key. Failures are logged.
func (c *Cache) Remove(key string) {
	if c == nil || c.medium == nil {
		return
	}
	c.remove(keyPrefix+key, key)
}

func (c *Cache) remove(storageKey, key string) {
	if err := c.medium.Delete(storageKey); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("preference delete failed")
	}
}

// Close releases the medium.
func (c *Cache) Close() error {
	if c == nil || c.medium == nil {
		return nil
	}
	return c.medium.Close()
}
