// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
)

func newTestREST(t *testing.T, h http.HandlerFunc) (*RESTClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewRESTClient(&config.RemoteConfig{
		URL:                 srv.URL,
		APIKey:              "anon-key",
		Schema:              "public",
		Timeout:             5 * time.Second,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.6,
		BreakerTimeout:      time.Hour,
	}, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewRESTClient: %v", err)
	}
	return c, srv
}

func TestRESTQuery(t *testing.T) {
	c, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/projects" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("end_client_id"); got != "in.(c1,c2)" {
			t.Errorf("end_client_id = %q", got)
		}
		if got := r.URL.Query().Get("order"); got != "created_at.desc" {
			t.Errorf("order = %q", got)
		}
		if r.Header.Get("apikey") != "anon-key" || r.Header.Get("Authorization") != "Bearer anon-key" {
			t.Errorf("auth headers = %v", r.Header)
		}
		if r.Header.Get("Accept-Profile") != "public" {
			t.Errorf("Accept-Profile = %q", r.Header.Get("Accept-Profile"))
		}
		_, _ = io.WriteString(w, `[{"id":"p1","end_client_id":"c1","title":"Lobby"}]`)
	})

	rows, err := c.Query(context.Background(), "projects",
		Filter{}.In("end_client_id", "c1", "c2").Order("created_at", true))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rows) != 1 || rows[0]["title"] != "Lobby" {
		t.Errorf("rows = %v", rows)
	}
}

func TestRESTEmptyInSkipsRoundTrip(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `[]`)
	})
	rows, err := c.Query(context.Background(), "chatbots", Filter{}.In("project_id"))
	if err != nil || len(rows) != 0 {
		t.Errorf("Query = %v, %v", rows, err)
	}
	if hits.Load() != 0 {
		t.Error("empty in-list hit the server")
	}
}

func TestRESTInsertUpdateDelete(t *testing.T) {
	c, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("%s Prefer = %q", r.Method, r.Header.Get("Prefer"))
		}
		switch r.Method {
		case http.MethodPost:
			var body Row
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			body["id"] = "l9"
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode([]Row{body})
		case http.MethodPatch:
			if r.URL.Query().Get("id") != "eq.l9" {
				t.Errorf("patch filter = %v", r.URL.Query())
			}
			_, _ = io.WriteString(w, `[{"id":"l9","name":"Grace"}]`)
		case http.MethodDelete:
			_, _ = io.WriteString(w, `[{"id":"l9"},{"id":"l10"}]`)
		}
	})
	ctx := context.Background()

	row, err := c.Insert(ctx, "leads", Row{"name": "Ada"})
	if err != nil || row["id"] != "l9" || row["name"] != "Ada" {
		t.Fatalf("Insert = %v, %v", row, err)
	}
	rows, err := c.Update(ctx, "leads", Where("id", "l9"), Row{"name": "Grace"})
	if err != nil || len(rows) != 1 {
		t.Fatalf("Update = %v, %v", rows, err)
	}
	n, err := c.Delete(ctx, "leads", Where("project_id", "p1"))
	if err != nil || n != 2 {
		t.Fatalf("Delete = %d, %v", n, err)
	}

	if _, err := c.Update(ctx, "leads", Filter{}, Row{"name": "x"}); err == nil {
		t.Error("unfiltered update accepted")
	}
	if _, err := c.Delete(ctx, "leads", Filter{}); err == nil {
		t.Error("unfiltered delete accepted")
	}
}

func TestRESTStatusError(t *testing.T) {
	c, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":"PGRST301","message":"JWT expired"}`)
	})

	_, err := c.Query(context.Background(), "creators", Where("user_id", "u1"))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Code != "PGRST301" || se.Message != "JWT expired" {
		t.Errorf("StatusError = %+v", se)
	}
	if !IsAuthError(err) {
		t.Error("IsAuthError = false")
	}
	if se.MetricLabel() != "auth" {
		t.Errorf("MetricLabel = %q", se.MetricLabel())
	}
}

func TestRESTBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	c, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Query(ctx, "projects", Filter{}); err == nil {
			t.Fatal("expected error")
		}
	}
	_, err := c.Query(ctx, "projects", Filter{})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hits = %d, want 3", hits.Load())
	}
	if c.BreakerState() != "open" {
		t.Errorf("BreakerState = %s", c.BreakerState())
	}
}

func TestRESTClientErrorsDoNotTripBreaker(t *testing.T) {
	c, _ := newTestREST(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	for i := 0; i < 5; i++ {
		_, err := c.Query(context.Background(), "projects", Filter{})
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("call %d err = %v", i, err)
		}
	}
	if c.BreakerState() != "closed" {
		t.Errorf("BreakerState = %s, want closed", c.BreakerState())
	}
}

func TestNewRESTClientRejectsBadURL(t *testing.T) {
	if _, err := NewRESTClient(&config.RemoteConfig{URL: "not a url"}); err == nil {
		t.Error("bad url accepted")
	}
}
