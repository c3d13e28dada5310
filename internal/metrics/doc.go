// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package metrics provides Prometheus instrumentation for the dashboard data layer.

All collectors are registered on the default registry through promauto and
exposed by the API router at /metrics.

# Available Metrics

Remote store:
  - remote_query_duration_seconds (operation, table)
  - remote_query_errors_total (operation, table, error_type)
  - remote_rows_returned_total (table)

Cache tiers (cache_type = query | prefs | fetch):
  - cache_hits_total, cache_misses_total, cache_evictions_total
  - cache_entries
  - cache_coalesced_fetches_total

Managed fetch cache:
  - fetch_duration_seconds (key, mode)
  - fetch_errors_total (key, mode)
  - fetch_invalidated_records_total
  - fetch_active_observers

Change notifications:
  - realtime_events_published_total (table)
  - realtime_events_received_total (table)
  - realtime_events_dropped_total (reason)
  - realtime_bursts_total, realtime_burst_size
  - realtime_feed_connected, realtime_feed_reconnects_total

Analytics and dashboard:
  - analytics_reconcile_duration_seconds (scope)
  - analytics_reconcile_runs_total (scope, result)
  - analytics_canonical_metrics_total (source)
  - dashboard_loads_total (result), dashboard_load_duration_seconds

Circuit breakers (name = remote | edge):
  - circuit_breaker_state, circuit_breaker_requests_total
  - circuit_breaker_consecutive_failures
  - circuit_breaker_state_transitions_total

Example PromQL:

	# query cache hit rate
	sum(rate(cache_hits_total{cache_type="query"}[5m])) /
	  (sum(rate(cache_hits_total{cache_type="query"}[5m])) + sum(rate(cache_misses_total{cache_type="query"}[5m])))

	# average events per debounced burst
	rate(realtime_burst_size_sum[5m]) / rate(realtime_burst_size_count[5m])

# Cardinality

Labels never carry user IDs or full cache keys. Managed fetch cache metrics
use the first key segment only, and error labels are classified or truncated
to 50 characters.
*/
package metrics
