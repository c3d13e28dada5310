// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package fetch

import (
	"context"
	"time"
)

// Default timing, applied when a caller passes the zero Options.
const (
	DefaultStaleTime = 30 * time.Second
	DefaultGCTime    = 5 * time.Minute
)

// Options control the lifecycle of one record.
type Options struct {
	// StaleTime is how long after a successful fetch data counts as fresh.
	StaleTime time.Duration
	// GCTime is how long after a successful fetch (or after the last
	// observer leaves) an unobserved record is kept.
	GCTime time.Duration
	// RefetchInterval polls while at least one observer is attached.
	// Zero disables polling.
	RefetchInterval time.Duration
	// RefetchOnFocus refetches stale data when Focus is called.
	RefetchOnFocus bool
}

// DefaultOptions returns stale 30s, gc 5m, no polling, refetch on focus.
func DefaultOptions() Options {
	return Options{
		StaleTime:      DefaultStaleTime,
		GCTime:         DefaultGCTime,
		RefetchOnFocus: true,
	}
}

// resolve fills a zero Options from defaults and clamps negative values.
func (o Options) resolve(defaults Options) Options {
	if o == (Options{}) {
		return defaults
	}
	if o.StaleTime < 0 {
		o.StaleTime = 0
	}
	if o.GCTime <= 0 {
		o.GCTime = defaults.GCTime
	}
	if o.GCTime < o.StaleTime {
		o.GCTime = o.StaleTime
	}
	if o.RefetchInterval < 0 {
		o.RefetchInterval = 0
	}
	return o
}

// Fetcher loads the data for a key. It receives a context that outlives the
// caller who triggered it and is cancelled only when the Client closes.
type Fetcher func(ctx context.Context) (any, error)

// State is what a reader sees for a key at one instant.
type State struct {
	Data         any
	UpdatedAt    time.Time
	IsLoading    bool
	IsStale      bool
	IsRefetching bool
	// Error is the last fetch failure. It is set alongside the previous Data
	// when a background refetch fails, and alone on a failed first load.
	Error error
}

// HasData reports whether a successful fetch has populated Data.
func (s State) HasData() bool {
	return !s.UpdatedAt.IsZero()
}
