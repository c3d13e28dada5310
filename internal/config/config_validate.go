// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateRemote,
		c.validateRealtime,
		c.validateCache,
		c.validateFetch,
		c.validatePrefs,
		c.validateEdge,
		c.validateServer,
		c.validateAuth,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateRemote() error {
	if c.Remote.URL != "" {
		if err := validateHTTPURL(c.Remote.URL); err != nil {
			return fmt.Errorf("REMOTE_URL: %w", err)
		}
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("REMOTE_TIMEOUT must be positive, got %v", c.Remote.Timeout)
	}
	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("REMOTE_RATE_LIMIT must not be negative, got %v", c.Remote.RateLimit)
	}
	if c.Remote.BreakerFailureRatio <= 0 || c.Remote.BreakerFailureRatio > 1 {
		return fmt.Errorf("REMOTE_BREAKER_FAILURE_RATIO must be in (0,1], got %v", c.Remote.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateRealtime() error {
	switch c.Realtime.Transport {
	case "memory":
	case "nats":
		if c.Realtime.NATSURL == "" {
			return fmt.Errorf("NATS_URL is required when REALTIME_TRANSPORT=nats")
		}
	default:
		return fmt.Errorf("REALTIME_TRANSPORT must be memory or nats, got %q", c.Realtime.Transport)
	}
	if c.Realtime.DebounceWindow <= 0 {
		return fmt.Errorf("REALTIME_DEBOUNCE_WINDOW must be positive, got %v", c.Realtime.DebounceWindow)
	}
	if c.Realtime.TopicPrefix == "" {
		return fmt.Errorf("REALTIME_TOPIC_PREFIX must not be empty")
	}
	if c.Realtime.FeedEnabled {
		if c.Realtime.FeedURL == "" {
			return fmt.Errorf("REALTIME_FEED_URL is required when REALTIME_FEED_ENABLED=true")
		}
		u, err := url.Parse(c.Realtime.FeedURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("REALTIME_FEED_URL must be a ws:// or wss:// URL, got %q", c.Realtime.FeedURL)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	ttls := map[string]int64{
		"CACHE_DEFAULT_TTL":   int64(c.Cache.DefaultTTL),
		"CACHE_ANALYTICS_TTL": int64(c.Cache.AnalyticsTTL),
		"CACHE_CLIENTS_TTL":   int64(c.Cache.ClientsTTL),
		"CACHE_PROJECTS_TTL":  int64(c.Cache.ProjectsTTL),
	}
	for name, ttl := range ttls {
		if ttl < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.StaleTime < 0 {
		return fmt.Errorf("FETCH_STALE_TIME must not be negative, got %v", c.Fetch.StaleTime)
	}
	if c.Fetch.GCTime < c.Fetch.StaleTime {
		return fmt.Errorf("FETCH_GC_TIME (%v) must be >= FETCH_STALE_TIME (%v)", c.Fetch.GCTime, c.Fetch.StaleTime)
	}
	if c.Fetch.RefetchInterval < 0 {
		return fmt.Errorf("FETCH_REFETCH_INTERVAL must not be negative, got %v", c.Fetch.RefetchInterval)
	}
	return nil
}

func (c *Config) validatePrefs() error {
	if c.Prefs.DefaultTTL <= 0 {
		return fmt.Errorf("PREFS_DEFAULT_TTL must be positive, got %v", c.Prefs.DefaultTTL)
	}
	if c.Prefs.RecentSearchLimit <= 0 {
		return fmt.Errorf("PREFS_RECENT_SEARCH_LIMIT must be positive, got %d", c.Prefs.RecentSearchLimit)
	}
	return nil
}

func (c *Config) validateEdge() error {
	if c.Edge.URL == "" {
		return nil
	}
	if err := validateHTTPURL(c.Edge.URL); err != nil {
		return fmt.Errorf("EDGE_URL: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateAuth() error {
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
