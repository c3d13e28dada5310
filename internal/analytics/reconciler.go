// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
)

// ErrSourceFailed wraps a failure of either analytics table. A computation
// never falls back to the other table alone, since that would understate
// totals.
var ErrSourceFailed = errors.New("analytics source failed")

// ErrNoStream is returned by Watch when the reconciler has no change stream.
var ErrNoStream = errors.New("analytics: no change stream configured")

// Reconciler merges the event-level and imported analytics tables into
// canonical metrics and aggregates them per scope.
type Reconciler struct {
	src    remote.Source
	stream realtime.Subscriber
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithChangeStream enables Watch: bursts on the analytics tables trigger
// recomputation after a quiet period of window.
func WithChangeStream(stream realtime.Subscriber, window time.Duration) Option {
	return func(r *Reconciler) {
		r.stream = stream
		r.window = window
	}
}

// WithClock overrides the time source for Result timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler creates a Reconciler reading from src.
func NewReconciler(src remote.Source, opts ...Option) *Reconciler {
	r := &Reconciler{
		src:    src,
		window: realtime.DefaultDebounceWindow,
		now:    time.Now,
		logger: logging.WithComponent("analytics"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics fetches both tables for scope in parallel and returns the merged
// canonical metrics. If either fetch fails the whole call fails.
func (r *Reconciler) Metrics(ctx context.Context, scope Scope) ([]CanonicalMetric, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var (
		events   []models.AnalyticsEvent
		imported []models.ImportedAnalytics
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		events, err = remote.QueryAs[models.AnalyticsEvent](gctx, r.src, models.TableAnalytics, scope.Filter())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSourceFailed, models.TableAnalytics, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		imported, err = remote.QueryAs[models.ImportedAnalytics](gctx, r.src, models.TableImportedAnalytics, scope.Filter())
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSourceFailed, models.TableImportedAnalytics, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raws := make([]RawMetric, 0, len(events)+len(imported))
	for _, e := range events {
		raws = append(raws, EventMetric(e))
	}
	for _, im := range imported {
		raws = append(raws, ImportedMetric(im))
	}
	out := NormalizeAll(scope, raws)

	metrics.ReconcileMetrics.WithLabelValues("event").Add(float64(len(events)))
	metrics.ReconcileMetrics.WithLabelValues("imported").Add(float64(len(out) - len(events)))
	return out, nil
}

// Compute returns the aggregate summary for scope.
func (r *Reconciler) Compute(ctx context.Context, scope Scope) (Summary, error) {
	start := time.Now()
	ms, err := r.Metrics(ctx, scope)
	metrics.RecordReconcile(string(scope.Kind), time.Since(start), err)
	if err != nil {
		r.logger.Warn().Err(err).Str("scope", scope.String()).Msg("analytics computation failed")
		return Summary{}, err
	}
	s := Aggregate(ms)
	r.logger.Debug().Str("scope", scope.String()).Int("metrics", s.MetricCount).Dur("duration", time.Since(start)).Msg("analytics computed")
	return s, nil
}
