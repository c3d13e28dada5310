// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the dashboard data layer:
// - Remote store queries (REST)
// - Cache tiers (entry store, preferences, managed fetch cache)
// - Change notifications and debounced bursts
// - Analytics reconciliation and dashboard loads
// - HTTP API, WebSocket push, circuit breakers

var (
	// Remote Store Metrics
	RemoteQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_query_duration_seconds",
			Help:    "Duration of remote store requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	RemoteQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_query_errors_total",
			Help: "Total number of failed remote store requests",
		},
		[]string{"operation", "table", "error_type"},
	)

	RemoteRowsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_rows_returned_total",
			Help: "Total number of rows returned by remote store queries",
		},
		[]string{"table"},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "query", "prefs", "fetch"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_entries",
			Help: "Current number of cached entries",
		},
		[]string{"cache_type"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache evictions (expiry, invalidation, gc)",
		},
		[]string{"cache_type"},
	)

	CacheCoalesced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_coalesced_fetches_total",
			Help: "Fetches that joined an in-flight fetch for the same key",
		},
		[]string{"cache_type"},
	)

	// Managed Fetch Cache Metrics
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Duration of managed fetch cache loads",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"key", "mode"}, // mode: "initial", "background"
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_errors_total",
			Help: "Total number of failed managed fetch cache loads",
		},
		[]string{"key", "mode"},
	)

	FetchInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fetch_invalidated_records_total",
			Help: "Records marked stale by prefix invalidation",
		},
	)

	FetchObservers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetch_active_observers",
			Help: "Current number of managed fetch cache observers",
		},
	)

	// Realtime Metrics
	RealtimeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Change events published to the change stream",
		},
		[]string{"table"},
	)

	RealtimeEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_received_total",
			Help: "Change events delivered to listeners",
		},
		[]string{"table"},
	)

	RealtimeEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Change events that could not be decoded or delivered",
		},
		[]string{"reason"},
	)

	RealtimeBursts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_bursts_total",
			Help: "Debounced refresh triggers fired",
		},
	)

	RealtimeBurstSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_burst_size",
			Help:    "Number of change events collapsed into one burst",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	RealtimeFeedConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_feed_connected",
			Help: "Realtime websocket feed state (0=disconnected, 1=connected)",
		},
	)

	RealtimeFeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_feed_reconnects_total",
			Help: "Realtime websocket feed reconnect attempts",
		},
	)

	// Analytics Metrics
	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_reconcile_duration_seconds",
			Help:    "Duration of unified analytics computations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	ReconcileRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_reconcile_runs_total",
			Help: "Unified analytics computations by result",
		},
		[]string{"scope", "result"}, // result: "success", "failure"
	)

	ReconcileMetrics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_canonical_metrics_total",
			Help: "Canonical metrics produced by normalization",
		},
		[]string{"source"}, // "event", "imported"
	)

	// Dashboard Metrics
	DashboardLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashboard_loads_total",
			Help: "Dashboard composite loads by result",
		},
		[]string{"result"}, // "success", "not_found", "ambiguous", "error"
	)

	DashboardLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dashboard_load_duration_seconds",
			Help:    "Duration of dashboard composite assembly",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// Edge RPC Metrics
	EdgeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_calls_total",
			Help: "Edge function calls by rpc and result",
		},
		[]string{"rpc", "result"},
	)

	EdgeCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_call_duration_seconds",
			Help:    "Duration of edge function calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"rpc"},
	)

	// Notification Metrics
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "User-facing notifications emitted",
		},
		[]string{"kind"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// ErrorType classifies an error into a low-cardinality label value.
type ErrorType interface {
	MetricLabel() string
}

// errorLabel returns a bounded label for err. Errors implementing ErrorType
// pick their own label; anything else is truncated to 50 characters.
func errorLabel(err error) string {
	var typed ErrorType
	if errors.As(err, &typed) {
		return typed.MetricLabel()
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(msg, "context canceled"):
		return "canceled"
	case strings.Contains(msg, "connection refused"):
		return "connection_refused"
	}
	if len(msg) > 50 {
		msg = msg[:50]
	}
	return msg
}

// RecordRemoteQuery records a remote store request.
func RecordRemoteQuery(operation, table string, duration time.Duration, rows int, err error) {
	RemoteQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		RemoteQueryErrors.WithLabelValues(operation, table, errorLabel(err)).Inc()
		return
	}
	if rows > 0 {
		RemoteRowsReturned.WithLabelValues(table).Add(float64(rows))
	}
}

// RecordFetch records a managed fetch cache load. root is the first key
// segment so per-user keys do not explode cardinality.
func RecordFetch(root string, background bool, duration time.Duration, err error) {
	mode := "initial"
	if background {
		mode = "background"
	}
	FetchDuration.WithLabelValues(root, mode).Observe(duration.Seconds())
	if err != nil {
		FetchErrors.WithLabelValues(root, mode).Inc()
	}
}

// RecordBurst records a debounced burst of n change events.
func RecordBurst(n int) {
	RealtimeBursts.Inc()
	RealtimeBurstSize.Observe(float64(n))
}

// RecordReconcile records one analytics computation.
func RecordReconcile(scope string, duration time.Duration, err error) {
	ReconcileDuration.WithLabelValues(scope).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	ReconcileRuns.WithLabelValues(scope, result).Inc()
}

// RecordDashboardLoad records one composite load.
func RecordDashboardLoad(result string, duration time.Duration) {
	DashboardLoads.WithLabelValues(result).Inc()
	DashboardLoadDuration.Observe(duration.Seconds())
}

// RecordEdgeCall records an edge RPC.
func RecordEdgeCall(rpc string, duration time.Duration, err error) {
	EdgeCallDuration.WithLabelValues(rpc).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	EdgeCalls.WithLabelValues(rpc, result).Inc()
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
