// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package supervisor runs the long-lived parts of the dashboard server under a
suture v4 supervision tree.

# Layers

	tourcompanion (root)
	├── cache-layer
	│   ├── fetch-sweeper        garbage-collects unobserved fetch records
	│   └── prefs-gc             BadgerDB value-log GC
	├── messaging-layer
	│   ├── websocket-hub        UI push channel
	│   ├── realtime-feed        store websocket → change stream
	│   └── websocket-relay      change stream → hub
	└── api-layer
	    └── http-server

Each layer restarts its own services with backoff. Events are logged
through sutureslog using the zerolog-backed slog handler from the logging
package.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
	    ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddCacheService(services.NewFetchSweeperService(fc, cfg.Fetch.SweepInterval))
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	err = tree.Serve(ctx)

Services are anything with Serve(ctx) error; a fmt.Stringer name is used in
log lines.
*/
package supervisor
