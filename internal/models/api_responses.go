// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package models

import "time"

// APIResponse is the envelope every HTTP endpoint returns.
//
// Status is "success" (see Data) or "error" (see Error).
//
//	{
//	  "status": "success",
//	  "data": {...},
//	  "metadata": {"timestamp": "2025-11-28T12:00:00Z", "cached": true}
//	}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata describes how the response was produced.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
	Stale       bool      `json:"stale,omitempty"`
	// Warning carries a stale-on-error message while Data still holds the
	// last good value.
	Warning string `json:"warning,omitempty"`
}

// APIError is the error body of a failed request.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
