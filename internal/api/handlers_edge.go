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
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/edge"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/notify"
)

// ChatRequest is the body of POST /chatbots/{id}/answer.
type ChatRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// provisionedResources are the slices a new project adds rows to.
var provisionedResources = []string{
	dashboard.ResourceClients,
	dashboard.ResourceProjects,
	dashboard.ResourceChatbots,
}

func (h *Handler) requireEdge(w http.ResponseWriter, r *http.Request) bool {
	if h.Edge == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Edge functions unavailable", nil)
		return false
	}
	return true
}

// ProvisionProject creates a client (when needed), a project and its
// chatbot, then marks the affected dashboard data stale.
//
// POST /api/v1/projects
func (h *Handler) ProvisionProject(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.requireEdge(w, r) {
		return
	}
	var req edge.ProvisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.Edge.ProvisionProject(r.Context(), req)
	if err != nil {
		notify.Error(r.Context(), h.Notifier, "project creation", err)
		respondServiceError(w, r, err)
		return
	}

	for _, resource := range provisionedResources {
		if err := h.Facade.Invalidate(resource); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("resource", resource).Msg("post-provision invalidation failed")
		}
	}
	if _, err := h.Facade.Refresh(r.Context(), userID(r), false); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("post-provision refresh failed")
	}
	if h.Notifier != nil {
		_ = h.Notifier.Notify(r.Context(), notify.KindSuccess, "Project \""+req.ProjectTitle+"\" created")
	}
	respondJSON(w, http.StatusCreated, &models.APIResponse{
		Status: "success",
		Data:   res,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// ChatAnswer asks a chatbot to answer a message.
//
// POST /api/v1/chatbots/{id}/answer
func (h *Handler) ChatAnswer(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if !h.requireEdge(w, r) {
		return
	}
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	answer, err := h.Edge.ChatAnswer(r.Context(), chi.URLParam(r, "id"), req.Message)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, start, map[string]string{"answer": answer}, models.Metadata{})
}
