// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/validation"
)

// UserIDHeader carries the authenticated user when no TokenVerifier is
// configured. It is set by the gateway in front of this service; browsers
// pass user_id on the websocket URL instead, since they cannot set headers
// on an upgrade.
const UserIDHeader = "X-User-ID"

// TokenVerifier resolves an access token to its user. *auth.Verifier
// implements it.
type TokenVerifier interface {
	UserID(token string) (string, error)
}

// ChiMiddlewareConfig holds CORS and rate limit settings.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
	RateLimitDisabled bool

	// Tokens, when set, makes a bearer token mandatory and ignores
	// UserIDHeader.
	Tokens TokenVerifier
}

// DefaultChiMiddlewareConfig allows no origins until configured.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", UserIDHeader, "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}
}

// ChiMiddlewareConfigFromServer maps server settings onto the defaults.
// A non-positive request budget disables rate limiting.
func ChiMiddlewareConfigFromServer(cfg *config.ServerConfig) *ChiMiddlewareConfig {
	c := DefaultChiMiddlewareConfig()
	c.CORSAllowedOrigins = cfg.CORSOrigins
	c.RateLimitRequests = cfg.RateLimitReqs
	if cfg.RateLimitWindow > 0 {
		c.RateLimitWindow = cfg.RateLimitWindow
	}
	c.RateLimitDisabled = cfg.RateLimitReqs <= 0
	return c
}

// ChiMiddleware builds the router's CORS and rate limit middleware.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the factory. A nil config uses the defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	opts := cors.Options{
		AllowedOrigins: config.CORSAllowedOrigins,
		AllowedMethods: config.CORSAllowedMethods,
		AllowedHeaders: config.CORSAllowedHeaders,
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         config.CORSMaxAge,
	}
	// The cors package treats an empty list as "allow all".
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return &ChiMiddleware{config: config, cors: cors.Handler(opts)}
}

// CORS must be global so OPTIONS preflights are answered.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitConfig is a request budget per window.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

var (
	// RateLimitHealth is permissive for probes and scrapers.
	RateLimitHealth = RateLimitConfig{Requests: 1000, Window: time.Minute}

	// RateLimitWrite covers refreshes, invalidations and preference writes.
	RateLimitWrite = RateLimitConfig{Requests: 30, Window: time.Minute}

	// RateLimitEdge covers provisioning and chatbot calls, which cost an
	// edge function invocation each.
	RateLimitEdge = RateLimitConfig{Requests: 10, Window: time.Minute}
)

func noop(next http.Handler) http.Handler { return next }

// RateLimit is the general budget, per user when known and per IP
// otherwise.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return noop
	}
	return httprate.Limit(
		m.config.RateLimitRequests,
		m.config.RateLimitWindow,
		httprate.WithKeyFuncs(keyByUserOrIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// RateLimitCustom applies a fixed budget per user or IP.
func (m *ChiMiddleware) RateLimitCustom(c RateLimitConfig) func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return noop
	}
	return httprate.Limit(c.Requests, c.Window,
		httprate.WithKeyFuncs(keyByUserOrIP),
		httprate.WithLimitHandler(rateLimited))
}

// RateLimitHealth applies RateLimitHealth per IP.
func (m *ChiMiddleware) RateLimitHealth() func(http.Handler) http.Handler {
	if m.config.RateLimitDisabled {
		return noop
	}
	return httprate.LimitByIP(RateLimitHealth.Requests, RateLimitHealth.Window)
}

func keyByUserOrIP(r *http.Request) (string, error) {
	if id := logging.UserIDFromContext(r.Context()); id != "" {
		return "user:" + id, nil
	}
	return httprate.KeyByIP(r)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	respondError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many requests", nil)
}

// RequireUser resolves the caller and stores it in the logging context.
// With a TokenVerifier the caller is the subject of the bearer token (or
// the access_token query parameter on websocket upgrades). Otherwise it is
// the X-User-ID header or the user_id query parameter. Requests without a
// valid identity get 401.
func (m *ChiMiddleware) RequireUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := m.resolveUser(w, r)
			if !ok {
				return
			}
			if verr := validation.Var("user_id", userID, "max=128,printascii"); verr != nil {
				respondValidationError(w, r, verr)
				return
			}
			ctx := logging.ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *ChiMiddleware) resolveUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	if m.config.Tokens == nil {
		userID := r.Header.Get(UserIDHeader)
		if userID == "" {
			userID = r.URL.Query().Get("user_id")
		}
		if userID == "" {
			respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Missing user identity", nil)
			return "", false
		}
		return userID, true
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Missing access token", nil)
		return "", false
	}
	userID, err := m.config.Tokens.UserID(token)
	if err != nil {
		respondError(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, "Invalid access token", err)
		return "", false
	}
	return userID, true
}

// APISecurityHeaders sets the standard hardening headers on API responses.
func APISecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
