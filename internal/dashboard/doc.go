// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package dashboard assembles a creator's dashboard from the hosted store.

A composite (models.Composite) is loaded in four dependent stages: the
creator row for the user, then the creator's clients, support requests and
assets, then the clients' projects, then the projects' chatbots, analytics,
requests and leads. Queries within a stage run in parallel, and each one
goes through the Keyed Query Cache with its own TTL.

Two cache tiers are involved:

  - The Managed Fetch Cache holds the composite under {"dashboard", userID}.
    It is authoritative: stale composites are served while a background
    refetch runs, and a failed refetch keeps the last good composite.
  - The Keyed Query Cache holds the sub-queries plus a per-user copy of each
    slice, so Resource can answer "just the clients" without a composite
    fetch. Writes to the two tiers are not ordered with respect to each
    other.

Everything handed to callers is a copy. Invalidating a resource never
changes a composite that was already returned.

Watch ties a user's open dashboard to the change stream: each debounced
burst drops the affected resources, marks the composite stale and pushes an
invalidate message to the user's websocket connections.
*/
package dashboard
