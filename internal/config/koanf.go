// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the config file locations searched in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tourcompanion/config.yaml",
	"/etc/tourcompanion/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Remote: RemoteConfig{
			Schema:              "public",
			Timeout:             15 * time.Second,
			RateLimit:           20,
			RateBurst:           40,
			BreakerMinRequests:  10,
			BreakerFailureRatio: 0.6,
			BreakerTimeout:      30 * time.Second,
		},
		Realtime: RealtimeConfig{
			Transport:          "memory",
			TopicPrefix:        "changes",
			DebounceWindow:     time.Second,
			BufferSize:         256,
			NATSURL:            "nats://127.0.0.1:4222",
			NATSQueueGroup:     "",
			NATSMaxReconnects:  -1,
			NATSReconnectWait:  2 * time.Second,
			FeedEnabled:        false,
			FeedTables:         []string{"creators", "end_clients", "projects", "chatbots", "analytics", "imported_analytics", "requests", "support_requests", "leads", "assets"},
			FeedReconnectDelay: 5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:         5 * time.Minute,
			CreatorTTL:         10 * time.Minute,
			ClientsTTL:         5 * time.Minute,
			ProjectsTTL:        5 * time.Minute,
			ChatbotsTTL:        10 * time.Minute,
			AnalyticsTTL:       2 * time.Minute,
			RequestsTTL:        3 * time.Minute,
			SupportRequestsTTL: 15 * time.Minute,
			LeadsTTL:           3 * time.Minute,
			AssetsTTL:          30 * time.Minute,
		},
		Fetch: FetchConfig{
			StaleTime:       30 * time.Second,
			GCTime:          5 * time.Minute,
			RefetchInterval: 0,
			RefetchOnFocus:  true,
			SweepInterval:   time.Minute,
		},
		Prefs: PrefsConfig{
			Path:              "/data/prefs",
			DefaultTTL:        30 * 24 * time.Hour,
			RecentSearchLimit: 10,
		},
		Edge: EdgeConfig{
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{},
			RateLimitReqs:   300,
			RateLimitWindow: time.Minute,
		},
		Auth: AuthConfig{
			JWTAudience: "authenticated",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads defaults, then the optional YAML file, then the
// environment, and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"realtime.feed_tables",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak in.
var envMappings = map[string]string{
	"remote_url":                   "remote.url",
	"remote_api_key":               "remote.api_key",
	"remote_schema":                "remote.schema",
	"remote_timeout":               "remote.timeout",
	"remote_rate_limit":            "remote.rate_limit",
	"remote_rate_burst":            "remote.rate_burst",
	"remote_breaker_min_requests":  "remote.breaker_min_requests",
	"remote_breaker_failure_ratio": "remote.breaker_failure_ratio",
	"remote_breaker_timeout":       "remote.breaker_timeout",

	"realtime_transport":       "realtime.transport",
	"realtime_topic_prefix":    "realtime.topic_prefix",
	"realtime_debounce_window": "realtime.debounce_window",
	"realtime_buffer_size":     "realtime.buffer_size",
	"nats_url":                 "realtime.nats_url",
	"nats_queue_group":         "realtime.nats_queue_group",
	"nats_max_reconnects":      "realtime.nats_max_reconnects",
	"nats_reconnect_wait":      "realtime.nats_reconnect_wait",
	"realtime_feed_enabled":    "realtime.feed_enabled",
	"realtime_feed_url":        "realtime.feed_url",
	"realtime_feed_tables":     "realtime.feed_tables",
	"realtime_feed_reconnect":  "realtime.feed_reconnect_delay",

	"cache_default_ttl":          "cache.default_ttl",
	"cache_creator_ttl":          "cache.creator_ttl",
	"cache_clients_ttl":          "cache.clients_ttl",
	"cache_projects_ttl":         "cache.projects_ttl",
	"cache_chatbots_ttl":         "cache.chatbots_ttl",
	"cache_analytics_ttl":        "cache.analytics_ttl",
	"cache_requests_ttl":         "cache.requests_ttl",
	"cache_support_requests_ttl": "cache.support_requests_ttl",
	"cache_leads_ttl":            "cache.leads_ttl",
	"cache_assets_ttl":           "cache.assets_ttl",

	"fetch_stale_time":       "fetch.stale_time",
	"fetch_gc_time":          "fetch.gc_time",
	"fetch_refetch_interval": "fetch.refetch_interval",
	"fetch_refetch_on_focus": "fetch.refetch_on_focus",
	"fetch_sweep_interval":   "fetch.sweep_interval",

	"prefs_path":                "prefs.path",
	"prefs_default_ttl":         "prefs.default_ttl",
	"prefs_recent_search_limit": "prefs.recent_search_limit",

	"edge_url":     "edge.url",
	"edge_api_key": "edge.api_key",
	"edge_timeout": "edge.timeout",

	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",

	"jwt_secret":   "auth.jwt_secret",
	"jwt_audience": "auth.jwt_audience",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths:
//
//	REMOTE_URL          -> remote.url
//	CACHE_ANALYTICS_TTL -> cache.analytics_ttl
//	NATS_URL            -> realtime.nats_url
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
