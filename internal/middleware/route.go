// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern returns the matched chi pattern (e.g. /api/v1/dashboard/{resource})
// so metric labels stay bounded. Unrouted requests collapse to "unmatched".
// It must be called after the handler ran; chi fills the pattern while routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
