// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package config loads the dashboard data layer configuration.
//
// Configuration is layered with Koanf v2 (highest priority wins):
//  1. Environment variables (see envTransformFunc for the mapping)
//  2. Optional YAML file (config.yaml, or the path in CONFIG_PATH)
//  3. Built-in defaults (defaultConfig)
package config

import "time"

// Config is the root configuration.
type Config struct {
	Remote   RemoteConfig   `koanf:"remote"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Cache    CacheConfig    `koanf:"cache"`
	Fetch    FetchConfig    `koanf:"fetch"`
	Prefs    PrefsConfig    `koanf:"prefs"`
	Edge     EdgeConfig     `koanf:"edge"`
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// RemoteConfig holds settings for the hosted relational store (REST API).
//
// Environment Variables:
//   - REMOTE_URL: base URL of the hosted store, e.g. https://xyz.example.co
//   - REMOTE_API_KEY: anon/service key sent as apikey + bearer token
//   - REMOTE_TIMEOUT: per-request timeout (default: 15s)
//   - REMOTE_RATE_LIMIT: client-side requests per second (default: 20)
//   - REMOTE_RATE_BURST: limiter burst (default: 40)
type RemoteConfig struct {
	URL       string        `koanf:"url"`
	APIKey    string        `koanf:"api_key"`
	Schema    string        `koanf:"schema"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	RateBurst int           `koanf:"rate_burst"`

	// Circuit breaker
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
}

// RealtimeConfig holds change-notification settings.
//
// Transport selects how change events reach the process:
//   - "memory": in-process Watermill GoChannel (single instance, dev/tests)
//   - "nats": Watermill NATS subscriber, for multi-instance deployments
//
// The websocket feed (FeedURL) connects to the hosted store's realtime
// endpoint and republishes its frames on the selected transport.
//
// NATSQueueGroup load-balances change events across instances. Every
// instance holds its own caches, so it is normally left empty.
type RealtimeConfig struct {
	Transport      string        `koanf:"transport"`
	TopicPrefix    string        `koanf:"topic_prefix"`
	DebounceWindow time.Duration `koanf:"debounce_window"`
	BufferSize     int           `koanf:"buffer_size"`

	NATSURL           string        `koanf:"nats_url"`
	NATSQueueGroup    string        `koanf:"nats_queue_group"`
	NATSMaxReconnects int           `koanf:"nats_max_reconnects"`
	NATSReconnectWait time.Duration `koanf:"nats_reconnect_wait"`

	FeedEnabled        bool          `koanf:"feed_enabled"`
	FeedURL            string        `koanf:"feed_url"`
	FeedTables         []string      `koanf:"feed_tables"`
	FeedReconnectDelay time.Duration `koanf:"feed_reconnect_delay"`
}

// CacheConfig holds Keyed Query Cache TTLs per dashboard sub-resource.
// Analytics churns most and is cached shortest; assets and support data
// churn least and are cached longest.
type CacheConfig struct {
	DefaultTTL         time.Duration `koanf:"default_ttl"`
	CreatorTTL         time.Duration `koanf:"creator_ttl"`
	ClientsTTL         time.Duration `koanf:"clients_ttl"`
	ProjectsTTL        time.Duration `koanf:"projects_ttl"`
	ChatbotsTTL        time.Duration `koanf:"chatbots_ttl"`
	AnalyticsTTL       time.Duration `koanf:"analytics_ttl"`
	RequestsTTL        time.Duration `koanf:"requests_ttl"`
	SupportRequestsTTL time.Duration `koanf:"support_requests_ttl"`
	LeadsTTL           time.Duration `koanf:"leads_ttl"`
	AssetsTTL          time.Duration `koanf:"assets_ttl"`
}

// FetchConfig holds Managed Fetch Cache defaults.
type FetchConfig struct {
	StaleTime       time.Duration `koanf:"stale_time"`
	GCTime          time.Duration `koanf:"gc_time"`
	RefetchInterval time.Duration `koanf:"refetch_interval"`
	RefetchOnFocus  bool          `koanf:"refetch_on_focus"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
}

// PrefsConfig holds Persistent Preference Cache settings.
type PrefsConfig struct {
	// Path is the BadgerDB directory. Empty means in-memory (not durable).
	Path              string        `koanf:"path"`
	DefaultTTL        time.Duration `koanf:"default_ttl"`
	RecentSearchLimit int           `koanf:"recent_search_limit"`
}

// EdgeConfig holds settings for the edge function RPCs.
type EdgeConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// AuthConfig holds caller identity settings.
//
// With JWTSecret set, API callers must present the hosted store's access
// token (HS256) and the user is its subject. Without it the X-User-ID
// header from a trusted gateway is used.
//
// Environment Variables:
//   - JWT_SECRET: the store's JWT signing secret (32+ characters)
//   - JWT_AUDIENCE: required aud claim (default: authenticated)
type AuthConfig struct {
	JWTSecret   string `koanf:"jwt_secret"`
	JWTAudience string `koanf:"jwt_audience"`
}

// LoggingConfig holds zerolog settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
