// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package middleware holds the HTTP middleware shared by the dashboard API:

  - RequestID: X-Request-ID propagation into the logging context
  - PrometheusMetrics: request counters and latency histograms per route
  - PerformanceMonitor: sliding-window route latencies for the health
    endpoint, with slow-request logging

All middleware has the chi signature func(http.Handler) http.Handler and
labels by chi route pattern rather than raw path.

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)
*/
package middleware
