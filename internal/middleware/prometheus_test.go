// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

func TestPrometheusMetricsLabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/dashboard/{resource}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "resource") == "nope" {
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	ok := metrics.APIRequestsTotal.WithLabelValues("GET", "/api/v1/dashboard/{resource}", "200")
	bad := metrics.APIRequestsTotal.WithLabelValues("GET", "/api/v1/dashboard/{resource}", "400")
	missing := metrics.APIRequestsTotal.WithLabelValues("GET", "unmatched", "404")
	beforeOK, beforeBad, beforeMissing := testutil.ToFloat64(ok), testutil.ToFloat64(bad), testutil.ToFloat64(missing)

	for _, path := range []string{"/api/v1/dashboard/leads", "/api/v1/dashboard/projects", "/api/v1/dashboard/nope", "/other"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bad) - beforeBad; got != 1 {
		t.Errorf("400 count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(missing) - beforeMissing; got != 1 {
		t.Errorf("unmatched count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.APIActiveRequests); got != 0 {
		t.Errorf("active requests = %v after completion", got)
	}
}
