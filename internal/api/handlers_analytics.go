// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/analytics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/validation"
)

// AnalyticsRequest selects the scope for analytics endpoints.
type AnalyticsRequest struct {
	Scope string `json:"scope" validate:"required,scopekind"`
	ID    string `json:"id" validate:"required,max=64"`
}

func (h *Handler) parseScope(w http.ResponseWriter, r *http.Request) (analytics.Scope, bool) {
	if h.Reconciler == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Analytics unavailable", nil)
		return analytics.Scope{}, false
	}
	req := AnalyticsRequest{
		Scope: r.URL.Query().Get("scope"),
		ID:    r.URL.Query().Get("id"),
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return analytics.Scope{}, false
	}
	scope, err := analytics.ParseScope(req.Scope, req.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return analytics.Scope{}, false
	}
	return scope, true
}

// AnalyticsSummary returns the reconciled totals for a project, client or
// creator.
//
// GET /api/v1/analytics/summary?scope=project&id=...
func (h *Handler) AnalyticsSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scope, ok := h.parseScope(w, r)
	if !ok {
		return
	}
	summary, err := h.Reconciler.Compute(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, summary, models.Metadata{})
}

// AnalyticsMetrics returns the canonical metrics behind a summary.
//
// GET /api/v1/analytics/metrics?scope=client&id=...
func (h *Handler) AnalyticsMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	scope, ok := h.parseScope(w, r)
	if !ok {
		return
	}
	ms, err := h.Reconciler.Metrics(r.Context(), scope)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, ms, models.Metadata{})
}
