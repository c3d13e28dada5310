// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/analytics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/dashboard"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/edge"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/middleware"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/notify"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/prefs"
	ws "github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/websocket"
)

// EdgeClient is the edge function surface used by the handlers.
type EdgeClient interface {
	ProvisionProject(ctx context.Context, req edge.ProvisionRequest) (edge.ProvisionResult, error)
	ChatAnswer(ctx context.Context, chatbotID, message string) (string, error)
	BreakerState() string
}

// BreakerReporter exposes a circuit breaker state for health checks.
type BreakerReporter interface {
	BreakerState() string
}

// Deps are the handler dependencies. Facade is required; the rest may
// be nil, in which case their endpoints answer 503.
type Deps struct {
	Facade     *dashboard.Facade
	Reconciler *analytics.Reconciler
	Prefs      *prefs.Cache
	Edge       EdgeClient
	Hub        *ws.Hub
	Notifier   notify.Notifier
	Perf       *middleware.PerformanceMonitor

	// Breakers are reported by the health endpoints, keyed by upstream.
	Breakers map[string]BreakerReporter

	// AllowedOrigins are the websocket origins; "*" allows any.
	AllowedOrigins []string
}

// Handler serves the dashboard API.
//
// Handler methods are split across files:
//   - handlers_dashboard.go: composite, resources, refresh, invalidation
//   - handlers_analytics.go: reconciled analytics
//   - handlers_prefs.go: view state and recent searches
//   - handlers_edge.go: project provisioning and chatbot answers
//   - handlers_websocket.go: push channel
//   - handlers_health.go: probes
type Handler struct {
	Deps
	watches   *watchSet
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(deps Deps) *Handler {
	if deps.Hub != nil && deps.Facade != nil {
		deps.Hub.SetFocusHandler(func(userID string) { deps.Facade.Focus(userID) })
	}
	return &Handler{
		Deps:      deps,
		watches:   newWatchSet(deps.Facade),
		startTime: time.Now(),
	}
}

// Close stops every dashboard watch opened for websocket clients.
func (h *Handler) Close() {
	h.watches.closeAll()
}

// getUpgrader creates a websocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin rejects upgrades without an allowed Origin. Browsers
// always send one; allowing an empty Origin would bypass CORS.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}
	if slices.Contains(h.AllowedOrigins, "*") || slices.Contains(h.AllowedOrigins, origin) {
		return true
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("websocket connection rejected from unauthorized origin")
	return false
}
