// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/breaker"
)

// ErrCircuitOpen is returned without contacting the store while the
// client's circuit breaker is open.
var ErrCircuitOpen = breaker.ErrOpen

// ErrUnknownTable is returned by MemorySource for tables it does not hold.
var ErrUnknownTable = errors.New("unknown table")

// StatusError is a non-2xx response from the store.
type StatusError struct {
	StatusCode int
	Table      string
	// Code and Message come from the store's error body when present.
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote %s: %d %s: %s", e.Table, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("remote %s: %d %s", e.Table, e.StatusCode, http.StatusText(e.StatusCode))
}

// MetricLabel groups status codes for metrics.
func (e *StatusError) MetricLabel() string {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return "auth"
	case e.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case e.StatusCode >= 500:
		return "server_error"
	default:
		return "client_error"
	}
}

// Temporary reports whether retrying later may succeed. Client errors
// other than rate limiting do not trip the circuit breaker.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsAuthError reports whether err is an expired or rejected credential.
func IsAuthError(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.MetricLabel() == "auth"
}
