// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/analytics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/api"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/auth"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/cache"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/dashboard"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/fetch"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/middleware"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/notify"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/prefs"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/supervisor"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/supervisor/services"
	ws "github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Caller = cfg.Logging.Caller
	logging.Init(logCfg)
	logging.Info().Msg("Starting TourCompanion dashboard data layer")

	stream, err := initStream(&cfg.Realtime)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize change stream")
	}
	defer func() {
		if err := stream.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing change stream")
		}
	}()

	src, remoteBreaker, err := initSource(&cfg.Remote, stream)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize remote store")
	}

	edgeClient, err := initEdge(&cfg.Edge)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize edge client")
	}

	// Caches
	queryCache := cache.NewQueryCache(cache.NewStore(cache.WithName("dashboard")))
	fetchOpts := fetch.Options{
		StaleTime:       cfg.Fetch.StaleTime,
		GCTime:          cfg.Fetch.GCTime,
		RefetchInterval: cfg.Fetch.RefetchInterval,
		RefetchOnFocus:  cfg.Fetch.RefetchOnFocus,
	}
	fetchClient := fetch.New(fetch.WithDefaults(fetchOpts))
	defer fetchClient.Close()

	prefsMedium, err := prefs.OpenBadger(cfg.Prefs.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Prefs.Path).Msg("Failed to open preference store")
	}
	prefsCache := prefs.New(prefsMedium,
		prefs.WithDefaultTTL(cfg.Prefs.DefaultTTL),
		prefs.WithRecentSearchLimit(cfg.Prefs.RecentSearchLimit))
	defer func() {
		if err := prefsCache.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing preference store")
		}
	}()

	// Push and notifications
	wsHub := ws.NewHub()
	notifier := notify.Multi{notify.NewLogNotifier(), notify.NewHubNotifier(wsHub)}

	facade := dashboard.New(src, queryCache, fetchClient, dashboard.TTLsFromConfig(cfg.Cache),
		dashboard.WithFetchOptions(fetchOpts),
		dashboard.WithChangeStream(stream, cfg.Realtime.DebounceWindow),
		dashboard.WithPusher(wsHub),
		dashboard.WithNotifier(notifier))
	reconciler := analytics.NewReconciler(src,
		analytics.WithChangeStream(stream, cfg.Realtime.DebounceWindow))

	breakers := map[string]api.BreakerReporter{}
	if remoteBreaker != nil {
		breakers["remote"] = remoteBreaker
	}
	deps := api.Deps{
		Facade:         facade,
		Reconciler:     reconciler,
		Prefs:          prefsCache,
		Hub:            wsHub,
		Notifier:       notifier,
		Perf:           middleware.NewPerformanceMonitor(1000, time.Second),
		Breakers:       breakers,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}
	// A nil *edge.Client must not become a non-nil interface.
	if edgeClient != nil {
		deps.Edge = edgeClient
		breakers["edge"] = edgeClient
	}
	handler := api.NewHandler(deps)
	defer handler.Close()

	mwConfig := api.ChiMiddlewareConfigFromServer(&cfg.Server)
	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewVerifier(&cfg.Auth)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize token verifier")
		}
		mwConfig.Tokens = verifier
		logging.Info().Msg("Access token authentication enabled")
	} else {
		logging.Warn().Msg("JWT_SECRET not set: trusting the X-User-ID header from the gateway")
	}
	router := api.NewRouter(handler, api.NewChiMiddleware(mwConfig))
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Websocket writes carry their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddCacheService(services.NewFetchSweeperService(fetchClient, cfg.Fetch.SweepInterval))
	if cfg.Prefs.Path != "" {
		tree.AddCacheService(services.NewValueLogGCService(prefsMedium.DB(), 0))
	}

	tree.AddMessagingService(wsHub)
	tree.AddMessagingService(ws.NewRelay(wsHub, stream, models.DashboardTables))
	if cfg.Realtime.FeedEnabled {
		feed := realtime.NewWSFeed(realtime.FeedConfig{
			URL:            cfg.Realtime.FeedURL,
			APIKey:         cfg.Remote.APIKey,
			Tables:         cfg.Realtime.FeedTables,
			ReconnectDelay: cfg.Realtime.FeedReconnectDelay,
		}, stream)
		tree.AddMessagingService(feed)
		logging.Info().Str("url", cfg.Realtime.FeedURL).Msg("Realtime feed enabled")
	}

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, handler.Close))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server configured")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
