// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
)

// HTTPServer is the lifecycle subset of *http.Server.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the dashboard API server under supervision. On
// cancellation it runs the drain hooks, then drains connections for up to
// shutdownTimeout.
//
// http.Server.Shutdown does not wait for hijacked websocket connections, so
// anything that keeps refetching on their behalf (watch loops) is stopped
// through a drain hook:
//
//	server := &http.Server{Addr: ":8080", Handler: router}
//	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second, handler.Close))
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	drain           []func()
	name            string
}

// NewHTTPServerService wraps server. A non-positive shutdownTimeout means 10s.
// Drain hooks run in order before Shutdown and must be safe to call again.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration, drain ...func()) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		drain:           drain,
		name:            "http-server",
	}
}

// Serve implements suture.Service. http.ErrServerClosed is not an error.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		log := logging.WithComponent(h.name)
		start := time.Now()
		for _, fn := range h.drain {
			fn()
		}

		// ctx is already canceled; shutdown gets its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Dur("timeout", h.shutdownTimeout).Msg("connection drain did not finish")
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		log.Info().Dur("elapsed", time.Since(start)).Int("drain_hooks", len(h.drain)).Msg("API server stopped")
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return h.name
}
