// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package cache provides the in-memory TTL tiers of the dashboard data layer.

# Overview

Two layers live here:

  - Store: a thread-safe key -> (value, storedAt, ttl) map with lazy expiry.
    Expired entries are evicted when Get or Has observes them.
  - QueryCache: canonical query keys over a Store with getOrFetch semantics,
    resource-wide invalidation and in-flight request coalescing.

The Store is created once per process and passed to consumers; nothing in
this package is a package-level singleton.

# Keys

Key(resource, filters) renders "resource|<sorted JSON filter pairs>".
InvalidateResource(resource) removes every key with the "resource|" prefix,
so callers never need to remember which filters were used at write time.

# Usage Example

	store := cache.NewStore()
	qc := cache.NewQueryCache(store)

	clients, err := cache.GetOrFetch(ctx, qc, "end_clients",
	    map[string]any{"creator_id": creatorID},
	    func(ctx context.Context) ([]models.EndClient, error) {
	        return fetchClients(ctx, creatorID)
	    },
	    5*time.Minute)

	// After a mutation to end_clients
	qc.InvalidateResource("end_clients")

# Metrics

Hits, misses, evictions and entry counts are exported with the cache_type
label set by WithName (default "query"). Coalesced fetches are counted in
cache_coalesced_fetches_total.
*/
package cache
