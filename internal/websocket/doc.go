// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package websocket pushes dashboard updates to connected browsers.

The hub owns the set of clients and fans messages out in connection
order. Each Client runs a read pump (answers ping frames, detects
disconnects) and a write pump (drains its send buffer, sends keepalive
pings). A client whose buffer is full is dropped rather than slowing the
hub down.

Message types:

  - change: a table changed ({"table":"leads","kind":"insert"}), sent to
    everyone by Relay
  - invalidate: a user's dashboard resources went stale, sent only to that
    user's connections
  - notification: a toast ({"kind":"error","message":"..."})
  - analytics: a recomputed analytics summary
  - ping/pong: application-level keepalive

Both Hub and Relay implement suture.Service and run under the messaging
layer of the supervisor tree.
*/
package websocket
