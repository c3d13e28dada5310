// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/auth"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
)

func TestChiMiddlewareConfigFromServer(t *testing.T) {
	got := ChiMiddlewareConfigFromServer(&config.ServerConfig{
		CORSOrigins:   []string{"https://app.example.com"},
		RateLimitReqs: 0,
	})
	want := DefaultChiMiddlewareConfig()
	want.CORSAllowedOrigins = []string{"https://app.example.com"}
	want.RateLimitRequests = 0
	want.RateLimitDisabled = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	got = ChiMiddlewareConfigFromServer(&config.ServerConfig{RateLimitReqs: 5, RateLimitWindow: time.Second})
	if got.RateLimitDisabled || got.RateLimitRequests != 5 || got.RateLimitWindow != time.Second {
		t.Errorf("config = %+v", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://app.example.com"},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type", UserIDHeader},
		CORSMaxAge:         60,
	})
	h := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight reached the handler")
	}))

	tests := []struct {
		origin    string
		wantAllow string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", "GET")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
			t.Errorf("%s: Allow-Origin = %q, want %q", tt.origin, got, tt.wantAllow)
		}
	}
}

func TestRateLimitPerUser(t *testing.T) {
	m := NewChiMiddleware(nil)
	limited := m.RateLimitCustom(RateLimitConfig{Requests: 2, Window: time.Minute})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	h := m.RequireUser()(limited)

	call := func(user string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
		req.Header.Set(UserIDHeader, user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	for i := 0; i < 2; i++ {
		if code := call("u1"); code != http.StatusOK {
			t.Fatalf("call %d = %d", i, code)
		}
	}
	if code := call("u1"); code != http.StatusTooManyRequests {
		t.Errorf("third call = %d, want 429", code)
	}
	if code := call("u2"); code != http.StatusOK {
		t.Errorf("other user = %d, want 200", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitDisabled: true})
	h := m.RateLimitCustom(RateLimitConfig{Requests: 1, Window: time.Minute})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d = %d", i, rec.Code)
		}
	}
}

func TestRequireUserSources(t *testing.T) {
	var seen string
	h := NewChiMiddleware(nil).RequireUser()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.UserIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?user_id=from-query", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "from-query" {
		t.Errorf("query user = %q", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/ws?user_id=from-query", nil)
	req.Header.Set(UserIDHeader, "from-header")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "from-header" {
		t.Errorf("header should win, got %q", seen)
	}
}

func TestRequireUserWithTokens(t *testing.T) {
	const secret = "0123456789abcdef0123456789abcdef"
	verifier, err := auth.NewVerifier(&config.AuthConfig{JWTSecret: secret, JWTAudience: "authenticated"})
	if err != nil {
		t.Fatal(err)
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}

	cfg := DefaultChiMiddlewareConfig()
	cfg.Tokens = verifier
	var seen string
	h := NewChiMiddleware(cfg).RequireUser()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name     string
		target   string
		header   map[string]string
		wantCode int
		wantUser string
	}{
		{"bearer", "/api/v1/dashboard", map[string]string{"Authorization": "Bearer " + token}, http.StatusOK, "u1"},
		{"query token", "/api/v1/ws?access_token=" + token, nil, http.StatusOK, "u1"},
		{"header ignored", "/api/v1/dashboard", map[string]string{UserIDHeader: "u2"}, http.StatusUnauthorized, ""},
		{"bad token", "/api/v1/dashboard", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode || seen != tt.wantUser {
				t.Errorf("got %d user %q, want %d user %q", rec.Code, seen, tt.wantCode, tt.wantUser)
			}
		})
	}
}

func TestAPISecurityHeaders(t *testing.T) {
	h := APISecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("headers = %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on plain HTTP")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("HSTS missing behind TLS proxy")
	}
}
