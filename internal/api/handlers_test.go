// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/analytics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/cache"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/dashboard"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/edge"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/fetch"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/middleware"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/notify"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/prefs"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
	ws "github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/websocket"
)

// envelope mirrors models.APIResponse with Data left undecoded.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

type fakeEdge struct {
	mu        sync.Mutex
	provision []edge.ProvisionRequest
	result    edge.ProvisionResult
	answer    string
	err       error
	state     string
}

func (f *fakeEdge) ProvisionProject(_ context.Context, req edge.ProvisionRequest) (edge.ProvisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provision = append(f.provision, req)
	return f.result, f.err
}

func (f *fakeEdge) ChatAnswer(_ context.Context, chatbotID, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer + " (" + chatbotID + ")", nil
}

func (f *fakeEdge) BreakerState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == "" {
		return "closed"
	}
	return f.state
}

func (f *fakeEdge) set(fn func(*fakeEdge)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeEdge) calls() []edge.ProvisionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]edge.ProvisionRequest(nil), f.provision...)
}

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Notify(_ context.Context, kind notify.Kind, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, string(kind)+": "+message)
	return nil
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type testEnv struct {
	src     *remote.MemorySource
	edge    *fakeEdge
	notes   *notes
	handler *Handler
	server  *httptest.Server
}

func seedSource(t *testing.T) *remote.MemorySource {
	t.Helper()
	src := remote.NewMemorySource(models.DashboardTables...)
	day := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	seeds := map[string][]any{
		models.TableCreators:   {models.Creator{ID: "cr1", UserID: "u1", AgencyName: "North Tours", CreatedAt: day}},
		models.TableEndClients: {models.EndClient{ID: "c1", CreatorID: "cr1", Name: "Ada", CreatedAt: day}},
		models.TableProjects:   {models.Project{ID: "p1", EndClientID: "c1", Title: "Loft", Status: "active", CreatedAt: day}},
		models.TableChatbots:   {models.Chatbot{ID: "b1", ProjectID: "p1", Name: "Loft bot", Status: "active", CreatedAt: day}},
		models.TableLeads:      {models.Lead{ID: "l1", ProjectID: "p1", ChatbotID: "b1", Name: "Visitor", CreatedAt: day}},
		models.TableAnalytics: {
			models.AnalyticsEvent{ID: "a1", ProjectID: "p1", EndClientID: "c1", CreatorID: "cr1", MetricType: "view", MetricValue: 40, Date: "2025-01-02", CreatedAt: day},
			models.AnalyticsEvent{ID: "a2", ProjectID: "p1", EndClientID: "c1", CreatorID: "cr1", MetricType: "lead_generated", MetricValue: 2, Date: "2025-01-02", CreatedAt: day},
		},
	}
	for table, values := range seeds {
		if err := src.SeedValues(table, values...); err != nil {
			t.Fatalf("seed %s: %v", table, err)
		}
	}
	return src
}

func newTestEnv(t *testing.T, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	return newTestEnvWith(t, fetch.Options{}, mutate...)
}

// newTestEnvWith is newTestEnv with explicit composite fetch options.
func newTestEnvWith(t *testing.T, fetchOpts fetch.Options, mutate ...func(*Deps)) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	stream := realtime.NewMemoryStream()
	t.Cleanup(func() { _ = stream.Close() })
	src := seedSource(t)
	src.SetPublisher(stream)

	hub := ws.NewHub()
	go func() { _ = hub.RunWithContext(ctx) }()

	fc := fetch.New(fetch.WithDefaults(fetch.Options{StaleTime: time.Minute, GCTime: 10 * time.Minute}))
	t.Cleanup(fc.Close)
	qc := cache.NewQueryCache(cache.NewStore(cache.WithName("api-test")))
	ttls := dashboard.TTLsFromConfig(config.CacheConfig{DefaultTTL: time.Hour, AnalyticsTTL: time.Minute})
	n := &notes{}
	facadeOpts := []dashboard.Option{
		dashboard.WithChangeStream(stream, 10*time.Millisecond),
		dashboard.WithPusher(hub),
		dashboard.WithNotifier(n),
	}
	if fetchOpts != (fetch.Options{}) {
		facadeOpts = append(facadeOpts, dashboard.WithFetchOptions(fetchOpts))
	}
	facade := dashboard.New(src, qc, fc, ttls, facadeOpts...)

	medium, err := prefs.OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	pc := prefs.New(medium)
	t.Cleanup(func() { _ = pc.Close() })

	fe := &fakeEdge{answer: "Open daily"}
	deps := Deps{
		Facade:         facade,
		Reconciler:     analytics.NewReconciler(src, analytics.WithChangeStream(stream, 10*time.Millisecond)),
		Prefs:          pc,
		Edge:           fe,
		Hub:            hub,
		Notifier:       n,
		Perf:           middleware.NewPerformanceMonitor(100, time.Second),
		Breakers:       map[string]BreakerReporter{"edge": fe},
		AllowedOrigins: []string{"https://app.example.com"},
	}
	for _, m := range mutate {
		m(&deps)
	}
	h := NewHandler(deps)
	t.Cleanup(h.Close)

	srv := httptest.NewServer(NewRouter(h, nil).SetupChi())
	t.Cleanup(srv.Close)
	return &testEnv{src: src, edge: fe, notes: n, handler: h, server: srv}
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) (int, envelope) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
	return v
}

func errCode(env envelope) string {
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func TestRequiresUser(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name     string
		user     string
		wantCode int
		wantErr  string
	}{
		{"missing", "", http.StatusUnauthorized, ErrCodeUnauthorized},
		{"control characters", "u1\x01", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"too long", strings.Repeat("u", 129), http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
			if tt.user != "" {
				req.Header.Set(UserIDHeader, tt.user)
			}
			rec := httptest.NewRecorder()
			NewRouter(e.handler, nil).SetupChi().ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var env envelope
			if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if errCode(env) != tt.wantErr {
				t.Errorf("code = %q, want %q", errCode(env), tt.wantErr)
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/dashboard", "u1", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	comp := decodeData[models.Composite](t, env)
	if comp.Creator.ID != "cr1" || len(comp.Projects) != 1 || len(comp.Leads) != 1 {
		t.Errorf("composite = %+v", comp)
	}
	if env.Metadata.Cached {
		t.Error("first load reported as cached")
	}

	_, env = e.do(t, http.MethodGet, "/api/v1/dashboard", "u1", "")
	if !env.Metadata.Cached {
		t.Error("second load not served from cache")
	}
}

func TestDashboardCreatorErrors(t *testing.T) {
	e := newTestEnv(t)
	status, env := e.do(t, http.MethodGet, "/api/v1/dashboard", "nobody", "")
	if status != http.StatusNotFound || errCode(env) != ErrCodeCreatorNotFound {
		t.Errorf("unknown creator: %d %+v", status, env.Error)
	}

	if err := e.src.SeedValues(models.TableCreators, models.Creator{ID: "cr2", UserID: "u1"}); err != nil {
		t.Fatal(err)
	}
	status, env = e.do(t, http.MethodPost, "/api/v1/dashboard/refresh?force=true", "u1", "")
	if status != http.StatusConflict || errCode(env) != ErrCodeMultipleCreators {
		t.Errorf("duplicate creator: %d %+v", status, env.Error)
	}
}

func TestDashboardResource(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/dashboard/leads", "u1", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if leads := decodeData[[]models.Lead](t, env); len(leads) != 1 || leads[0].ID != "l1" {
		t.Errorf("leads = %+v", leads)
	}

	status, env = e.do(t, http.MethodGet, "/api/v1/dashboard/invoices", "u1", "")
	if status != http.StatusNotFound || errCode(env) != ErrCodeNotFound {
		t.Errorf("unknown resource: %d %+v", status, env.Error)
	}
}

func TestRefreshAndInvalidate(t *testing.T) {
	e := newTestEnv(t)
	if status, _ := e.do(t, http.MethodGet, "/api/v1/dashboard", "u1", ""); status != http.StatusOK {
		t.Fatalf("initial load status = %d", status)
	}

	if _, err := e.src.Insert(context.Background(), models.TableLeads, remote.Row{"project_id": "p1", "name": "Second"}); err != nil {
		t.Fatal(err)
	}
	status, env := e.do(t, http.MethodPost, "/api/v1/dashboard/refresh?force=true", "u1", "")
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d", status)
	}
	if comp := decodeData[models.Composite](t, env); len(comp.Leads) != 2 {
		t.Errorf("forced refresh leads = %d, want 2", len(comp.Leads))
	}

	status, env = e.do(t, http.MethodPost, "/api/v1/cache/invalidate/leads", "u1", "")
	if status != http.StatusOK {
		t.Errorf("invalidate status = %d, error = %+v", status, env.Error)
	}
	status, env = e.do(t, http.MethodPost, "/api/v1/cache/invalidate/invoices", "u1", "")
	if status != http.StatusBadRequest || errCode(env) != ErrCodeBadRequest {
		t.Errorf("invalidate unknown: %d %+v", status, env.Error)
	}
}

func TestAnalyticsSummary(t *testing.T) {
	e := newTestEnv(t)
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantErr    string
	}{
		{"project", "scope=project&id=p1", http.StatusOK, ""},
		{"creator", "scope=creator&id=cr1", http.StatusOK, ""},
		{"unknown scope", "scope=tenant&id=x", http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing id", "scope=client", http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := e.do(t, http.MethodGet, "/api/v1/analytics/summary?"+tt.query, "u1", "")
			if status != tt.wantStatus || errCode(env) != tt.wantErr {
				t.Fatalf("got %d %q, want %d %q", status, errCode(env), tt.wantStatus, tt.wantErr)
			}
			if status != http.StatusOK {
				return
			}
			s := decodeData[analytics.Summary](t, env)
			if s.TotalViews != 40 || s.TotalLeads != 2 || s.ConversionRate != 5 {
				t.Errorf("summary = %+v", s)
			}
		})
	}
}

func TestAnalyticsSourceFailure(t *testing.T) {
	e := newTestEnv(t)
	e.src.FailWith(models.TableImportedAnalytics, io.ErrUnexpectedEOF)
	status, env := e.do(t, http.MethodGet, "/api/v1/analytics/metrics?scope=project&id=p1", "u1", "")
	if status != http.StatusBadGateway || errCode(env) != ErrCodeUpstream {
		t.Errorf("got %d %+v", status, env.Error)
	}
}

func TestUnconfiguredDependencies(t *testing.T) {
	e := newTestEnv(t, func(d *Deps) {
		d.Reconciler = nil
		d.Prefs = nil
		d.Edge = nil
	})
	for _, path := range []string{"/api/v1/analytics/summary?scope=project&id=p1", "/api/v1/prefs/view"} {
		if status, env := e.do(t, http.MethodGet, path, "u1", ""); status != http.StatusServiceUnavailable {
			t.Errorf("%s: %d %+v", path, status, env.Error)
		}
	}
	if status, _ := e.do(t, http.MethodPost, "/api/v1/chatbots/b1/answer", "u1", `{"message":"hi"}`); status != http.StatusServiceUnavailable {
		t.Errorf("chat status = %d", status)
	}
}

func TestViewState(t *testing.T) {
	e := newTestEnv(t)

	_, env := e.do(t, http.MethodGet, "/api/v1/prefs/view", "u1", "")
	if vs := decodeData[prefs.ViewState](t, env); vs.View != prefs.DefaultViewState().View {
		t.Errorf("default view = %+v", vs)
	}

	status, env := e.do(t, http.MethodPut, "/api/v1/prefs/view", "u1",
		`{"view":"projects","tab":"list","filters":{"status":"active"}}`)
	if status != http.StatusOK {
		t.Fatalf("put status = %d, error = %+v", status, env.Error)
	}
	_, env = e.do(t, http.MethodGet, "/api/v1/prefs/view", "u1", "")
	vs := decodeData[prefs.ViewState](t, env)
	if vs.View != "projects" || vs.Tab != "list" || vs.Filters["status"] != "active" {
		t.Errorf("stored view = %+v", vs)
	}

	// Other users are unaffected.
	_, env = e.do(t, http.MethodGet, "/api/v1/prefs/view", "u2", "")
	if other := decodeData[prefs.ViewState](t, env); other.View == "projects" {
		t.Error("view state leaked across users")
	}

	bad := []string{
		`{"view":"settings"}`,
		`{"tab":"list"}`,
		`{"view":"projects","color":"red"}`,
		`not json`,
	}
	for _, body := range bad {
		if status, _ := e.do(t, http.MethodPut, "/api/v1/prefs/view", "u1", body); status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, status)
		}
	}
}

func TestRecentSearches(t *testing.T) {
	e := newTestEnv(t)
	for _, q := range []string{"loft", "villa", "loft"} {
		if status, env := e.do(t, http.MethodPost, "/api/v1/prefs/searches", "u1", `{"query":"`+q+`"}`); status != http.StatusOK {
			t.Fatalf("add %q: %d %+v", q, status, env.Error)
		}
	}
	_, env := e.do(t, http.MethodGet, "/api/v1/prefs/searches", "u1", "")
	got := decodeData[[]string](t, env)
	if strings.Join(got, ",") != "loft,villa" {
		t.Errorf("searches = %v", got)
	}

	if status, _ := e.do(t, http.MethodPost, "/api/v1/prefs/searches", "u1", `{"query":""}`); status != http.StatusBadRequest {
		t.Errorf("empty query status = %d", status)
	}

	if status, _ := e.do(t, http.MethodDelete, "/api/v1/prefs/searches", "u1", ""); status != http.StatusNoContent {
		t.Errorf("clear status = %d", status)
	}
	_, env = e.do(t, http.MethodGet, "/api/v1/prefs/searches", "u1", "")
	if got := decodeData[[]string](t, env); len(got) != 0 {
		t.Errorf("after clear = %v", got)
	}
}

func TestProvisionProject(t *testing.T) {
	e := newTestEnv(t)
	e.edge.set(func(f *fakeEdge) {
		f.result = edge.ProvisionResult{EndClientID: "c9", ProjectID: "p9", ChatbotID: "b9"}
	})

	body := `{"creator_id":"cr1","client_name":"Bea","project_title":"Harbor","tour_url":"https://tours.example.com/harbor"}`
	status, env := e.do(t, http.MethodPost, "/api/v1/projects", "u1", body)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if res := decodeData[edge.ProvisionResult](t, env); res.ProjectID != "p9" {
		t.Errorf("result = %+v", res)
	}
	if calls := e.edge.calls(); len(calls) != 1 || calls[0].ProjectTitle != "Harbor" {
		t.Errorf("edge calls = %+v", calls)
	}
	if msgs := e.notes.all(); len(msgs) == 0 || msgs[len(msgs)-1] != `success: Project "Harbor" created` {
		t.Errorf("notifications = %v", msgs)
	}
}

func TestProvisionProjectErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing title", `{"creator_id":"cr1","client_name":"Bea"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad url", `{"creator_id":"cr1","client_name":"Bea","project_title":"H","tour_url":"nope"}`, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"function failed", `{"creator_id":"cr1","client_name":"Bea","project_title":"H"}`,
			&edge.RPCError{Function: "create-project", StatusCode: 500, Message: "boom"}, http.StatusBadGateway, ErrCodeUpstream},
		{"function not found", `{"creator_id":"cr1","client_name":"Bea","project_title":"H"}`,
			&edge.RPCError{Function: "create-project", StatusCode: 404, Message: "no such creator"}, http.StatusNotFound, ErrCodeNotFound},
		{"breaker open", `{"creator_id":"cr1","client_name":"Bea","project_title":"H"}`,
			remote.ErrCircuitOpen, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			e.edge.set(func(f *fakeEdge) { f.err = tt.err })
			status, env := e.do(t, http.MethodPost, "/api/v1/projects", "u1", tt.body)
			if status != tt.wantStatus || errCode(env) != tt.wantCode {
				t.Errorf("got %d %q, want %d %q", status, errCode(env), tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestChatAnswer(t *testing.T) {
	e := newTestEnv(t)
	status, env := e.do(t, http.MethodPost, "/api/v1/chatbots/b1/answer", "u1", `{"message":"When are you open?"}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, error = %+v", status, env.Error)
	}
	if got := decodeData[map[string]string](t, env)["answer"]; got != "Open daily (b1)" {
		t.Errorf("answer = %q", got)
	}

	e.edge.set(func(f *fakeEdge) { f.err = edge.ErrEmptyAnswer })
	if status, _ := e.do(t, http.MethodPost, "/api/v1/chatbots/b1/answer", "u1", `{"message":"hi"}`); status != http.StatusBadGateway {
		t.Errorf("empty answer status = %d", status)
	}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)

	status, env := e.do(t, http.MethodGet, "/api/v1/health/live", "", "")
	if status != http.StatusOK {
		t.Errorf("live status = %d", status)
	}
	if status, _ = e.do(t, http.MethodGet, "/api/v1/health/ready", "", ""); status != http.StatusOK {
		t.Errorf("ready status = %d", status)
	}

	e.edge.set(func(f *fakeEdge) { f.state = "open" })
	status, env = e.do(t, http.MethodGet, "/api/v1/health/ready", "", "")
	if status != http.StatusServiceUnavailable || errCode(env) != ErrCodeServiceUnavailable {
		t.Errorf("ready with open breaker: %d %+v", status, env.Error)
	}

	status, env = e.do(t, http.MethodGet, "/api/v1/health", "", "")
	if status != http.StatusOK {
		t.Fatalf("health status = %d", status)
	}
	hs := decodeData[HealthStatus](t, env)
	if hs.Status != "degraded" || hs.Breakers["edge"] != "open" {
		t.Errorf("health = %+v", hs)
	}
}

func TestUnknownRoute(t *testing.T) {
	e := newTestEnv(t)
	status, env := e.do(t, http.MethodGet, "/nowhere", "", "")
	if status != http.StatusNotFound || errCode(env) != ErrCodeNotFound {
		t.Errorf("got %d %+v", status, env.Error)
	}
}
