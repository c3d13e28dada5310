// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Command server runs the TourCompanion dashboard data layer.

It loads configuration (koanf: defaults, optional config.yaml, then the
environment), connects to the hosted store over REST, and serves dashboard
composites, reconciled analytics, preferences and edge function calls over
HTTP, with a websocket push channel for invalidations and notifications.

# Supervision

Long-running components run under a Suture v4 tree:

	tourcompanion
	├── cache-layer
	│   ├── fetch-sweeper   (Managed Fetch Cache GC)
	│   └── prefs-gc        (BadgerDB value log GC, only with PREFS_PATH)
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── websocket-relay (change events to clients)
	│   └── realtime-feed   (only with REALTIME_FEED_ENABLED)
	└── api-layer
	    └── http-server

# Running without a store

With REMOTE_URL unset the server uses an empty in-memory store that
publishes its own writes as change events. This is for local development;
every dashboard request fails with CREATOR_NOT_FOUND until creators exist.

# Signals

SIGINT and SIGTERM cancel the tree. The HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT, then the caches and the change stream are closed.
*/
package main
