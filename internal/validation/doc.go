// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package validation validates request and payload structs with
// go-playground/validator v10.
//
// A single validator instance is shared by the process; it caches struct
// metadata, so it must not be recreated per request. Field names in errors
// are taken from json tags, so messages match the wire names clients send.
//
// Custom tags:
//   - dashtable: one of the dashboard tables (projects, leads, ...)
//   - isodate: a YYYY-MM-DD calendar date
//   - scopekind: project, client or creator
//
// Example:
//
//	type chatRequest struct {
//	    ChatbotID string `json:"chatbot_id" validate:"required"`
//	    Message   string `json:"message" validate:"required,max=4000"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	    return
//	}
package validation
