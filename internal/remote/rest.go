// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/breaker"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

const (
	restPath        = "/rest/v1/"
	maxResponseSize = 32 << 20
)

// RESTClient is a Source over the store's PostgREST endpoint
// (/rest/v1/<table>?col=eq.v). Requests are rate limited client-side and
// pass through a circuit breaker.
type RESTClient struct {
	baseURL string
	apiKey  string
	schema  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker[[]byte]
	logger  zerolog.Logger
}

// RESTOption configures a RESTClient.
type RESTOption func(*RESTClient)

// WithHTTPClient replaces the HTTP client (tests use httptest clients).
func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) {
		if c != nil {
			r.http = c
		}
	}
}

// NewRESTClient creates a client from the remote config section.
func NewRESTClient(cfg *config.RemoteConfig, opts ...RESTOption) (*RESTClient, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", cfg.URL)
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &RESTClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		schema:  cfg.Schema,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: breaker.New[[]byte](breaker.Settings{
			Name:         "remote-store",
			MinRequests:  cfg.BreakerMinRequests,
			FailureRatio: cfg.BreakerFailureRatio,
			Timeout:      cfg.BreakerTimeout,
			IsFailure:    countsAgainstCircuit,
		}),
		logger: logging.WithComponent("remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// countsAgainstCircuit keeps caller mistakes and cancellations from
// opening the circuit.
func countsAgainstCircuit(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// BreakerState reports the circuit state for health checks.
func (c *RESTClient) BreakerState() string {
	return c.breaker.State()
}

// Query implements Source.
func (c *RESTClient) Query(ctx context.Context, table string, filter Filter) ([]Row, error) {
	if filter.Empty() {
		return []Row{}, nil
	}
	return c.do(ctx, "select", http.MethodGet, table, filter.Values(), nil)
}

// Insert implements Source.
func (c *RESTClient) Insert(ctx context.Context, table string, row Row) (Row, error) {
	rows, err := c.do(ctx, "insert", http.MethodPost, table, nil, row)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert %s: store returned no row", table)
	}
	return rows[0], nil
}

// Update implements Source.
func (c *RESTClient) Update(ctx context.Context, table string, filter Filter, patch Row) ([]Row, error) {
	if len(filter.Predicates) == 0 {
		return nil, fmt.Errorf("update %s: refusing unfiltered update", table)
	}
	return c.do(ctx, "update", http.MethodPatch, table, filter.Values(), patch)
}

// Delete implements Source.
func (c *RESTClient) Delete(ctx context.Context, table string, filter Filter) (int, error) {
	if len(filter.Predicates) == 0 {
		return 0, fmt.Errorf("delete %s: refusing unfiltered delete", table)
	}
	rows, err := c.do(ctx, "delete", http.MethodDelete, table, filter.Values(), nil)
	return len(rows), err
}

func (c *RESTClient) do(ctx context.Context, op, method, table string, query url.Values, body any) (rows []Row, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRemoteQuery(op, table, time.Since(start), len(rows), err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s %s: rate limit wait: %w", op, table, err)
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encode body: %w", op, table, err)
		}
	}

	endpoint := c.baseURL + restPath + url.PathEscape(table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, method, endpoint, table, payload)
	})
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			c.logger.Warn().Str("table", table).Str("op", op).Msg("remote call rejected by open circuit")
		}
		return nil, err
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []Row{}, nil
	}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%s %s: decode response: %w", op, table, err)
	}
	return rows, nil
}

func (c *RESTClient) roundTrip(ctx context.Context, method, endpoint, table string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.schema != "" {
		req.Header.Set("Accept-Profile", c.schema)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		if c.schema != "" {
			req.Header.Set("Content-Profile", c.schema)
		}
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, table, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode, Table: table}
		var eb struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &eb) == nil {
			se.Code, se.Message = eb.Code, eb.Message
		}
		return nil, se
	}
	return data, nil
}
