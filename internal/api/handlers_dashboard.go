// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/dashboard"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
)

func snapshotMeta(snap dashboard.Snapshot, start time.Time) models.Metadata {
	meta := models.Metadata{
		Cached: snap.UpdatedAt.Before(start),
		Stale:  snap.Stale,
	}
	if snap.Err != nil {
		meta.Warning = "showing last loaded data: refresh failed"
	}
	return meta
}

// Dashboard returns the caller's composite.
//
// GET /api/v1/dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, err := h.Facade.Snapshot(r.Context(), userID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, snap.Composite, snapshotMeta(snap, start))
}

// RefreshDashboard reloads the caller's composite. With force=true every
// cache tier is bypassed; otherwise the composite is marked stale and
// refetched in the background.
//
// POST /api/v1/dashboard/refresh?force=true
func (h *Handler) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap, err := h.Facade.Refresh(r.Context(), userID(r), getBoolParam(r, "force", false))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, snap.Composite, snapshotMeta(snap, start))
}

// FocusDashboard reports that the caller's dashboard regained focus. A
// watched composite that went stale is refetched in the background and
// arrives over the push channel.
//
// POST /api/v1/dashboard/focus
func (h *Handler) FocusDashboard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n := h.Facade.Focus(userID(r))
	respondSuccess(w, start, map[string]int{"refetching": n}, models.Metadata{})
}

// DashboardResource returns one sub-resource of the caller's dashboard.
//
// GET /api/v1/dashboard/{resource}
func (h *Handler) DashboardResource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resource := chi.URLParam(r, "resource")
	if !dashboard.ValidResource(resource) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Unknown dashboard resource", nil)
		return
	}
	data, err := h.Facade.Resource(r.Context(), userID(r), resource)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, data, models.Metadata{})
}

// InvalidateResource drops a sub-resource from the query cache for every
// user.
//
// POST /api/v1/cache/invalidate/{resource}
func (h *Handler) InvalidateResource(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	resource := chi.URLParam(r, "resource")
	if err := h.Facade.Invalidate(resource); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, map[string]string{"invalidated": resource}, models.Metadata{})
}
