// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package middleware

import (
	"cmp"
	"net/http"
	"slices"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
)

// RequestSample is one completed request.
type RequestSample struct {
	Route      string
	Method     string
	Duration   time.Duration
	StatusCode int
	At         time.Time
}

// RouteStats summarizes the samples of one route.
type RouteStats struct {
	Route    string        `json:"route"`
	Requests int           `json:"requests"`
	Errors   int           `json:"errors"`
	Avg      time.Duration `json:"avg_ns"`
	P50      time.Duration `json:"p50_ns"`
	P95      time.Duration `json:"p95_ns"`
	Max      time.Duration `json:"max_ns"`
}

// PerformanceMonitor keeps a sliding window of recent request samples for
// the health endpoint and logs requests slower than a threshold.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	samples    []RequestSample
	maxSamples int
	slow       time.Duration
}

// NewPerformanceMonitor keeps the last maxSamples requests. slow <= 0
// disables slow-request logging.
func NewPerformanceMonitor(maxSamples int, slow time.Duration) *PerformanceMonitor {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	return &PerformanceMonitor{
		samples:    make([]RequestSample, 0, maxSamples),
		maxSamples: maxSamples,
		slow:       slow,
	}
}

// Record adds a sample, evicting the oldest once the window is full.
func (pm *PerformanceMonitor) Record(s RequestSample) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if len(pm.samples) == pm.maxSamples {
		copy(pm.samples, pm.samples[1:])
		pm.samples = pm.samples[:len(pm.samples)-1]
	}
	pm.samples = append(pm.samples, s)
}

// Stats aggregates the window per method and route, busiest first.
func (pm *PerformanceMonitor) Stats() []RouteStats {
	pm.mu.RLock()
	byRoute := make(map[string][]RequestSample)
	for _, s := range pm.samples {
		key := s.Method + " " + s.Route
		byRoute[key] = append(byRoute[key], s)
	}
	pm.mu.RUnlock()

	stats := make([]RouteStats, 0, len(byRoute))
	for route, samples := range byRoute {
		durations := make([]time.Duration, len(samples))
		var sum time.Duration
		errs := 0
		for i, s := range samples {
			durations[i] = s.Duration
			sum += s.Duration
			if s.StatusCode >= http.StatusInternalServerError {
				errs++
			}
		}
		slices.Sort(durations)
		stats = append(stats, RouteStats{
			Route:    route,
			Requests: len(samples),
			Errors:   errs,
			Avg:      sum / time.Duration(len(samples)),
			P50:      percentile(durations, 0.50),
			P95:      percentile(durations, 0.95),
			Max:      durations[len(durations)-1],
		})
	}
	slices.SortFunc(stats, func(a, b RouteStats) int {
		if c := cmp.Compare(b.Requests, a.Requests); c != 0 {
			return c
		}
		return cmp.Compare(a.Route, b.Route)
	})
	return stats
}

// Middleware samples every request.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s := RequestSample{
			Route:      routePattern(r),
			Method:     r.Method,
			Duration:   time.Since(start),
			StatusCode: ww.Status(),
			At:         start,
		}
		if s.StatusCode == 0 {
			s.StatusCode = http.StatusOK
		}
		pm.Record(s)

		if pm.slow > 0 && s.Duration > pm.slow {
			logging.Ctx(r.Context()).Warn().
				Str("method", s.Method).
				Str("route", s.Route).
				Dur("duration", s.Duration).
				Dur("threshold", pm.slow).
				Msg("slow request")
		}
	})
}

// percentile picks from an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
