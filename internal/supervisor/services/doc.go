// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package services adapts dashboard components to suture.Service.

Components that already expose Serve(ctx) error (the websocket hub and
relay, the realtime WSFeed) are added to the tree directly. This package
covers the rest:

  - HTTPServerService: ListenAndServe/Shutdown with a drain timeout
  - FetchSweeperService: periodic Managed Fetch Cache garbage collection
  - ValueLogGCService: BadgerDB value-log GC for the preference store

Services return ctx.Err() on shutdown and a wrapped error on failure so the
supervisor can apply its restart backoff.
*/
package services
