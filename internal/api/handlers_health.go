// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/middleware"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status       string                  `json:"status"`
	Uptime       float64                 `json:"uptime_seconds"`
	Breakers     map[string]string       `json:"breakers"`
	WSClients    int                     `json:"websocket_clients"`
	Watches      int                     `json:"dashboard_watches"`
	CacheEntries int                     `json:"cache_entries"`
	Routes       []middleware.RouteStats `json:"routes,omitempty"`
}

func (h *Handler) breakerStates() (map[string]string, []string) {
	states := make(map[string]string, len(h.Breakers))
	var open []string
	for name, b := range h.Breakers {
		if b == nil {
			continue
		}
		s := b.BreakerState()
		states[name] = s
		if s == "open" {
			open = append(open, name)
		}
	}
	sort.Strings(open)
	return states, open
}

// Health reports upstream breakers, push clients and route timings. It
// always answers 200; Status is "degraded" while any breaker is open.
//
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	states, open := h.breakerStates()
	hs := HealthStatus{
		Status:   "healthy",
		Uptime:   time.Since(h.startTime).Seconds(),
		Breakers: states,
		Watches:  h.watches.active(),
	}
	if len(open) > 0 {
		hs.Status = "degraded"
	}
	if h.Hub != nil {
		hs.WSClients = h.Hub.GetClientCount()
	}
	if h.Facade != nil {
		hs.CacheEntries = h.Facade.CacheLen()
	}
	if h.Perf != nil {
		hs.Routes = h.Perf.Stats()
	}
	respondSuccess(w, start, hs, models.Metadata{})
}

// HealthLive answers as long as the process serves requests.
//
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, time.Now(), map[string]any{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}, models.Metadata{})
}

// HealthReady answers 503 while any upstream breaker is open.
//
// GET /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	_, open := h.breakerStates()
	if len(open) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, &models.APIResponse{
			Status:   "error",
			Data:     map[string]any{"ready": false, "open_breakers": open},
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    &models.APIError{Code: ErrCodeServiceUnavailable, Message: "Upstream circuit open"},
		})
		return
	}
	respondSuccess(w, time.Now(), map[string]any{"ready": true}, models.Metadata{})
}
