// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/analytics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	ws "github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/websocket"
)

// analyticsFrame is the payload of an analytics push.
type analyticsFrame struct {
	Scope      analytics.Scope   `json:"scope"`
	Summary    analytics.Summary `json:"summary"`
	HasSummary bool              `json:"has_summary"`
	Error      string            `json:"error,omitempty"`
	ComputedAt time.Time         `json:"computed_at"`
}

func newAnalyticsFrame(res analytics.Result) analyticsFrame {
	f := analyticsFrame{
		Scope:      res.Scope,
		Summary:    res.Summary,
		HasSummary: res.HasSummary,
		ComputedAt: res.ComputedAt,
	}
	if res.Error != nil {
		f.Error = res.Error.Error()
	}
	return f
}

// WebSocket upgrades to the push channel. While the connection is open the
// caller's dashboard is watched: changes push invalidation frames and
// refresh failures push notifications. With analytics_scope and
// analytics_id the reconciled summary is pushed after every change too.
//
// GET /api/v1/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Push channel unavailable", nil)
		return
	}
	user := userID(r)

	var scope *analytics.Scope
	if kind := r.URL.Query().Get("analytics_scope"); kind != "" && h.Reconciler != nil {
		s, err := analytics.ParseScope(kind, r.URL.Query().Get("analytics_id"))
		if err != nil {
			respondServiceError(w, r, err)
			return
		}
		scope = &s
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.Hub, conn, user)
	h.Hub.Register <- client
	client.Start()

	release, err := h.watches.acquire(user)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("dashboard watch failed to start")
		release = func() {}
	}

	var aw *analytics.Watch
	if scope != nil {
		aw, err = h.Reconciler.Watch(*scope, func(res analytics.Result) {
			h.Hub.SendToUser(user, ws.MessageTypeAnalytics, newAnalyticsFrame(res))
		})
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Str("scope", scope.String()).Msg("analytics watch not started")
			aw = nil
		}
	}

	go func() {
		<-client.Done()
		release()
		if aw != nil {
			aw.Close()
		}
	}()
}
