// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
)

func sample(route string, ms int, status int) RequestSample {
	return RequestSample{Route: route, Method: http.MethodGet, Duration: time.Duration(ms) * time.Millisecond, StatusCode: status}
}

func TestPerformanceMonitorStats(t *testing.T) {
	pm := NewPerformanceMonitor(100, 0)
	for _, ms := range []int{10, 20, 30, 40} {
		pm.Record(sample("/api/v1/dashboard", ms, 200))
	}
	pm.Record(sample("/api/v1/health", 1, 503))

	want := []RouteStats{
		{Route: "GET /api/v1/dashboard", Requests: 4, Avg: 25 * time.Millisecond, P50: 20 * time.Millisecond, P95: 30 * time.Millisecond, Max: 40 * time.Millisecond},
		{Route: "GET /api/v1/health", Requests: 1, Errors: 1, Avg: time.Millisecond, P50: time.Millisecond, P95: time.Millisecond, Max: time.Millisecond},
	}
	if diff := cmp.Diff(want, pm.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformanceMonitorSlidingWindow(t *testing.T) {
	pm := NewPerformanceMonitor(3, 0)
	for i := 1; i <= 5; i++ {
		pm.Record(sample("/r", i, 200))
	}
	stats := pm.Stats()
	if len(stats) != 1 || stats[0].Requests != 3 || stats[0].Max != 5*time.Millisecond || stats[0].P50 != 4*time.Millisecond {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestPerformanceMonitorMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(logging.NewTestLogger(nil)) })

	pm := NewPerformanceMonitor(10, time.Nanosecond)
	r := chi.NewRouter()
	r.Use(pm.Middleware)
	r.Get("/api/v1/dashboard/{resource}", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusTeapot)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/leads", nil))

	stats := pm.Stats()
	if len(stats) != 1 || stats[0].Route != "GET /api/v1/dashboard/{resource}" {
		t.Fatalf("Stats = %+v", stats)
	}
	if !strings.Contains(buf.String(), "slow request") {
		t.Errorf("slow request not logged: %s", buf.String())
	}
}

func TestPerformanceMonitorConcurrentRecord(t *testing.T) {
	pm := NewPerformanceMonitor(50, 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pm.Record(sample("/r", j, 200))
				_ = pm.Stats()
			}
		}()
	}
	wg.Wait()
	if got := pm.Stats()[0].Requests; got != 50 {
		t.Errorf("Requests = %d, want window size 50", got)
	}
}
