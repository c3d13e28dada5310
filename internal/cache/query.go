// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// Cacher is the entry store contract the query cache needs.
// *Store implements it.
type Cacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	DeletePrefix(prefix string) int
	Clear()
}

var _ Cacher = (*Store)(nil)

// QueryCache serves getOrFetch semantics over canonical query keys.
//
// A valid entry short-circuits the fetch. On a miss the fetch runs once per
// key: concurrent first callers share one in-flight fetch. The shared fetch
// is detached from the caller's cancellation, so a caller that gives up does
// not abort work other callers (and the cache) still want. Fetch errors are
// never cached.
//
// Each resource carries a generation that every invalidation bumps. A fetch
// only stores its result if the generation it started under is still
// current, and callers arriving after an invalidation never join a fetch
// started before it.
type QueryCache struct {
	store Cacher
	group singleflight.Group
	name  string

	mu    sync.Mutex
	gens  map[string]uint64
	epoch uint64 // bumped by Clear
}

// NewQueryCache wraps store.
func NewQueryCache(store Cacher) *QueryCache {
	name := "query"
	if s, ok := store.(*Store); ok {
		name = s.name
	}
	return &QueryCache{store: store, name: name, gens: make(map[string]uint64)}
}

// Generation identifies the invalidation state of one resource.
type Generation struct {
	resource uint64
	epoch    uint64
}

// Generation returns resource's current generation, for use with PutIf.
func (qc *QueryCache) Generation(resource string) Generation {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	return Generation{resource: qc.gens[resource], epoch: qc.epoch}
}

func (qc *QueryCache) bump(resource string) {
	qc.mu.Lock()
	qc.gens[resource]++
	qc.mu.Unlock()
}

// setIfCurrent stores val unless resource was invalidated after gen was
// taken. The check and the write happen under one lock so an invalidation
// cannot slip between them.
func (qc *QueryCache) setIfCurrent(resource string, gen Generation, key string, val any, ttl time.Duration) bool {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if qc.gens[resource] != gen.resource || qc.epoch != gen.epoch {
		return false
	}
	qc.store.Set(key, val, ttl)
	return true
}

// Store returns the underlying entry store.
func (qc *QueryCache) Store() Cacher {
	return qc.store
}

// FetchFunc loads the value for a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// GetOrFetch returns the cached value for (resource, filters) or calls fetch,
// stores its result for ttl and returns it.
//
// A cached value of a different type than T is treated as a miss.
func GetOrFetch[T any](ctx context.Context, qc *QueryCache, resource string, filters map[string]any, fetch FetchFunc[T], ttl time.Duration) (T, error) {
	key := Key(resource, filters)

	if v, ok := qc.store.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		logging.Warn().Str("key", key).Msg("cached value has unexpected type, refetching")
	}

	gen := qc.Generation(resource)
	flight := key + "#" + strconv.FormatUint(gen.epoch, 10) + "." + strconv.FormatUint(gen.resource, 10)
	detached := context.WithoutCancel(ctx)
	ch := qc.group.DoChan(flight, func() (any, error) {
		val, err := fetch(detached)
		if err != nil {
			return nil, err
		}
		if !qc.setIfCurrent(resource, gen, key, val, ttl) {
			logging.Debug().Str("key", key).Msg("resource invalidated during fetch, result not cached")
		}
		return val, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Shared {
			metrics.CacheCoalesced.WithLabelValues(qc.name).Inc()
		}
		typed, ok := res.Val.(T)
		if !ok {
			// Another caller fetched the same key as a different type.
			return zero, errTypeMismatch(key, res.Val)
		}
		return typed, nil
	}
}

// Put writes value under (resource, filters), bypassing fetch.
func (qc *QueryCache) Put(resource string, filters map[string]any, value any, ttl time.Duration) {
	qc.store.Set(Key(resource, filters), value, ttl)
}

// PutIf writes value like Put unless resource was invalidated since gen
// was taken. It reports whether the value was stored.
func (qc *QueryCache) PutIf(resource string, filters map[string]any, value any, ttl time.Duration, gen Generation) bool {
	return qc.setIfCurrent(resource, gen, Key(resource, filters), value, ttl)
}

// Lookup returns the cached value for (resource, filters) if present.
func Lookup[T any](qc *QueryCache, resource string, filters map[string]any) (T, bool) {
	var zero T
	v, ok := qc.store.Get(Key(resource, filters))
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Invalidate drops the single entry for (resource, filters). Fetches of
// resource already in flight no longer store their results.
func (qc *QueryCache) Invalidate(resource string, filters map[string]any) {
	qc.bump(resource)
	qc.store.Delete(Key(resource, filters))
}

// InvalidateResource drops every entry of resource, whatever filters were
// used to write it, and returns how many were removed. Fetches of resource
// already in flight no longer store their results.
func (qc *QueryCache) InvalidateResource(resource string) int {
	qc.bump(resource)
	n := qc.store.DeletePrefix(ResourcePrefix(resource))
	logging.Debug().Str("resource", resource).Int("removed", n).Msg("query cache resource invalidated")
	return n
}

// Clear drops every entry and discards the results of fetches in flight.
func (qc *QueryCache) Clear() {
	qc.mu.Lock()
	qc.epoch++
	qc.mu.Unlock()
	qc.store.Clear()
}
