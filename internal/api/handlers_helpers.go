// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/analytics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/breaker"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/dashboard"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/edge"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/validation"
)

// Error codes used in APIError.Code.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeConflict           = "CONFLICT"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUpstream           = "UPSTREAM_ERROR"
	ErrCodeCreatorNotFound    = "CREATOR_NOT_FOUND"
	ErrCodeMultipleCreators   = "MULTIPLE_CREATORS"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

// sanitizeLogValue escapes control characters so user input cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON writes the envelope. User data is never cached by
// intermediaries.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, start time.Time, data any, meta models.Metadata) {
	meta.Timestamp = time.Now()
	meta.QueryTimeMS = time.Since(start).Milliseconds()
	respondJSON(w, http.StatusOK, &models.APIResponse{Status: "success", Data: data, Metadata: meta})
}

// respondError writes an error envelope. err is logged, never returned to
// the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		ev := logging.Ctx(r.Context()).Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Ctx(r.Context()).Error()
		}
		ev.Str("code", code).Str("error", sanitizeLogValue(err.Error())).Str("path", r.URL.Path).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

func respondValidationError(w http.ResponseWriter, r *http.Request, verr *validation.RequestValidationError) {
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    verr.ToAPIError(),
	})
}

// respondServiceError maps library errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *validation.RequestValidationError
		status *remote.StatusError
		rpc    *edge.RPCError
	)
	switch {
	case errors.As(err, &verr):
		respondValidationError(w, r, verr)
	case errors.Is(err, dashboard.ErrCreatorNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeCreatorNotFound, "No creator profile for this user", err)
	case errors.Is(err, dashboard.ErrMultipleCreators):
		respondError(w, r, http.StatusConflict, ErrCodeMultipleCreators, "More than one creator profile for this user", err)
	case errors.Is(err, dashboard.ErrUnknownResource), errors.Is(err, analytics.ErrInvalidScope):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), nil)
	case errors.Is(err, breaker.ErrOpen):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Upstream temporarily unavailable", err)
	case errors.As(err, &rpc) && rpc.StatusCode == http.StatusNotFound:
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, rpc.Message, err)
	case errors.As(err, &status), errors.As(err, &rpc), errors.Is(err, analytics.ErrSourceFailed), errors.Is(err, edge.ErrEmptyAnswer):
		respondError(w, r, http.StatusBadGateway, ErrCodeUpstream, "Upstream request failed", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal error", err)
	}
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body", err)
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		respondValidationError(w, r, verr)
		return false
	}
	return true
}

// getBoolParam parses a boolean query parameter; absent or invalid values
// yield def.
func getBoolParam(r *http.Request, name string, def bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func userID(r *http.Request) string {
	return logging.UserIDFromContext(r.Context())
}
