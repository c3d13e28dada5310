// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/prefs"
)

// ViewStateRequest is the body of PUT /prefs/view.
type ViewStateRequest struct {
	View      string            `json:"view" validate:"required,oneof=overview projects clients analytics requests leads chatbots assets"`
	Tab       string            `json:"tab" validate:"max=64"`
	ProjectID string            `json:"project_id" validate:"max=64"`
	ClientID  string            `json:"client_id" validate:"max=64"`
	Filters   map[string]string `json:"filters" validate:"max=20,dive,keys,max=64,endkeys,max=256"`
}

// SearchRequest is the body of POST /prefs/searches.
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

func (h *Handler) requirePrefs(w http.ResponseWriter, r *http.Request) bool {
	if h.Prefs == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Preferences unavailable", nil)
		return false
	}
	return true
}

// GetViewState returns the caller's last dashboard view.
//
// GET /api/v1/prefs/view
func (h *Handler) GetViewState(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrefs(w, r) {
		return
	}
	respondSuccess(w, time.Now(), h.Prefs.ViewState(userID(r)), models.Metadata{Cached: true})
}

// PutViewState stores the caller's dashboard view.
//
// PUT /api/v1/prefs/view
func (h *Handler) PutViewState(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.requirePrefs(w, r) {
		return
	}
	var req ViewStateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user := userID(r)
	h.Prefs.SaveViewState(user, prefs.ViewState{
		View:      req.View,
		Tab:       req.Tab,
		ProjectID: req.ProjectID,
		ClientID:  req.ClientID,
		Filters:   req.Filters,
	})
	respondSuccess(w, start, h.Prefs.ViewState(user), models.Metadata{})
}

// RecentSearches lists the caller's searches, newest first.
//
// GET /api/v1/prefs/searches
func (h *Handler) RecentSearches(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrefs(w, r) {
		return
	}
	respondSuccess(w, time.Now(), h.Prefs.RecentSearches(userID(r)), models.Metadata{Cached: true})
}

// AddRecentSearch records a search.
//
// POST /api/v1/prefs/searches
func (h *Handler) AddRecentSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.requirePrefs(w, r) {
		return
	}
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	respondSuccess(w, start, h.Prefs.AddRecentSearch(userID(r), req.Query), models.Metadata{})
}

// ClearRecentSearches removes the caller's search history.
//
// DELETE /api/v1/prefs/searches
func (h *Handler) ClearRecentSearches(w http.ResponseWriter, r *http.Request) {
	if !h.requirePrefs(w, r) {
		return
	}
	h.Prefs.ClearRecentSearches(userID(r))
	w.WriteHeader(http.StatusNoContent)
}
