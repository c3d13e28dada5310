// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package edge calls the hosted edge functions: project provisioning and
// chatbot answers. Both are request/response RPCs over HTTPS and pass
// through a shared circuit breaker.
package edge

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

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/breaker"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/validation"
)

const (
	functionsPath   = "/functions/v1/"
	maxResponseSize = 1 << 20

	rpcProvision = "provision-project"
	rpcChat      = "chatbot-response"
)

// ErrCircuitOpen is returned without calling out while the circuit is open.
var ErrCircuitOpen = breaker.ErrOpen

// ErrEmptyAnswer is returned when the chatbot function answers with no text.
var ErrEmptyAnswer = errors.New("edge: empty chatbot answer")

// RPCError is a non-2xx response from an edge function.
type RPCError struct {
	Function   string
	StatusCode int
	Message    string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("edge %s: %d: %s", e.Function, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("edge %s: %d %s", e.Function, e.StatusCode, http.StatusText(e.StatusCode))
}

// MetricLabel implements metrics.ErrorType.
func (e *RPCError) MetricLabel() string {
	if e.StatusCode >= 500 {
		return "server_error"
	}
	return "client_error"
}

// ProvisionRequest creates an end client (or reuses ClientID), a project
// and its chatbot in one call.
type ProvisionRequest struct {
	CreatorID      string `json:"creator_id" validate:"required"`
	ClientID       string `json:"end_client_id,omitempty"`
	ClientName     string `json:"client_name" validate:"required_without=ClientID,max=200"`
	ClientEmail    string `json:"client_email,omitempty" validate:"omitempty,email"`
	ProjectTitle   string `json:"project_title" validate:"required,max=200"`
	ProjectType    string `json:"project_type,omitempty" validate:"omitempty,max=50"`
	TourURL        string `json:"tour_url,omitempty" validate:"omitempty,url"`
	ChatbotName    string `json:"chatbot_name,omitempty" validate:"omitempty,max=100"`
	WelcomeMessage string `json:"welcome_message,omitempty" validate:"omitempty,max=1000"`
}

// ProvisionResult identifies what was created.
type ProvisionResult struct {
	EndClientID string `json:"endClientId"`
	ProjectID   string `json:"projectId"`
	ChatbotID   string `json:"chatbotId"`
	PortalURL   string `json:"portalUrl"`
}

type chatRequest struct {
	ChatbotID string `json:"chatbot_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=4000"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

// Client invokes edge functions.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *breaker.Breaker[[]byte]
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// NewClient creates a client from the edge config section.
func NewClient(cfg *config.EdgeConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid edge url %q", cfg.URL)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker.New[[]byte](breaker.Settings{
			Name:        "edge-functions",
			MinRequests: 5,
			Timeout:     time.Minute,
			IsFailure: func(err error) bool {
				var re *RPCError
				if errors.As(err, &re) {
					return re.StatusCode >= 500
				}
				return !errors.Is(err, context.Canceled)
			},
		}),
		logger: logging.WithComponent("edge"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ProvisionProject validates req and provisions a project.
func (c *Client) ProvisionProject(ctx context.Context, req ProvisionRequest) (ProvisionResult, error) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return ProvisionResult{}, verr
	}
	var res ProvisionResult
	if err := c.call(ctx, rpcProvision, req, &res); err != nil {
		return ProvisionResult{}, err
	}
	if res.ProjectID == "" {
		return ProvisionResult{}, fmt.Errorf("edge %s: response has no project id", rpcProvision)
	}
	c.logger.Info().Str("creator_id", req.CreatorID).Str("project_id", res.ProjectID).Str("chatbot_id", res.ChatbotID).Msg("project provisioned")
	return res, nil
}

// ChatAnswer asks chatbotID to answer message.
func (c *Client) ChatAnswer(ctx context.Context, chatbotID, message string) (string, error) {
	req := chatRequest{ChatbotID: chatbotID, Message: message}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return "", verr
	}
	var res chatResponse
	if err := c.call(ctx, rpcChat, req, &res); err != nil {
		return "", err
	}
	if strings.TrimSpace(res.Answer) == "" {
		return "", ErrEmptyAnswer
	}
	return res.Answer, nil
}

// BreakerState reports the circuit state for health checks.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

func (c *Client) call(ctx context.Context, function string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordEdgeCall(function, time.Since(start), err)
	}()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("edge %s: encode: %w", function, err)
	}
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, function, payload)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("function", function).Msg("edge call failed")
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("edge %s: decode: %w", function, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, function string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+functionsPath+function, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if id := logging.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("edge %s: %w", function, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("edge %s: read response: %w", function, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		re := &RPCError{Function: function, StatusCode: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &body) == nil {
			re.Message = body.Error
		}
		return nil, re
	}
	return data, nil
}
