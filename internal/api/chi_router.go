// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a Router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi builds the route tree.
func (router *Router) SetupChi() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Applied to every route, in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global to answer preflight
	r.Use(middleware.PrometheusMetrics)
	if h.Perf != nil {
		r.Use(h.Perf.Middleware)
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders)
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RequireUser())
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders)

		// The websocket must bypass compression to keep Hijack available.
		r.Get("/ws", h.WebSocket)

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Compress(5, "application/json"))

			r.Get("/dashboard", h.Dashboard)
			r.Get("/dashboard/{resource}", h.DashboardResource)

			r.Get("/analytics/summary", h.AnalyticsSummary)
			r.Get("/analytics/metrics", h.AnalyticsMetrics)

			r.Get("/prefs/view", h.GetViewState)
			r.Get("/prefs/searches", h.RecentSearches)

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitCustom(RateLimitWrite))
				r.Post("/dashboard/refresh", h.RefreshDashboard)
				r.Post("/dashboard/focus", h.FocusDashboard)
				r.Post("/cache/invalidate/{resource}", h.InvalidateResource)
				r.Put("/prefs/view", h.PutViewState)
				r.Post("/prefs/searches", h.AddRecentSearch)
				r.Delete("/prefs/searches", h.ClearRecentSearches)
			})

			r.Group(func(r chi.Router) {
				r.Use(router.chiMiddleware.RateLimitCustom(RateLimitEdge))
				r.Post("/projects", h.ProvisionProject)
				r.Post("/chatbots/{id}/answer", h.ChatAnswer)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusNotFound, ErrCodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	return r
}
