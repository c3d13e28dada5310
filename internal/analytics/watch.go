// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
)

// Result is one published computation. When a recompute fails, Summary is
// the last good summary (if any) and Error is set.
type Result struct {
	Scope      Scope     `json:"scope"`
	Summary    Summary   `json:"summary"`
	HasSummary bool      `json:"has_summary"`
	Error      error     `json:"-"`
	ComputedAt time.Time `json:"computed_at"`
}

// Watch keeps a scope's summary current. It computes once on start and
// again after every burst of changes to either analytics table that may
// touch the scope. Recomputations never overlap; bursts arriving during
// one coalesce into a single follow-up.
type Watch struct {
	r        *Reconciler
	scope    Scope
	onUpdate func(Result)
	listener *realtime.Listener

	kick   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu   sync.Mutex
	last Result
}

// Watch starts watching scope. onUpdate may be nil when only Latest is
// used; it is called from a single goroutine.
func (r *Reconciler) Watch(scope Scope, onUpdate func(Result), opts ...realtime.ListenerOption) (*Watch, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if r.stream == nil {
		return nil, ErrNoStream
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watch{
		r:        r,
		scope:    scope,
		onUpdate: onUpdate,
		kick:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		last:     Result{Scope: scope},
	}

	// Subscribe before the first computation so no change is missed.
	l, err := realtime.Listen(r.stream,
		[]string{models.TableAnalytics, models.TableImportedAnalytics},
		r.window, w.onBurst, opts...)
	if err != nil {
		cancel()
		return nil, err
	}
	w.listener = l

	w.trigger()
	go w.run()
	return w, nil
}

func (w *Watch) onBurst(b realtime.Burst) {
	for _, e := range b.Events {
		if affects(w.scope, e) {
			w.trigger()
			return
		}
	}
}

// affects reports whether a change may alter the scope's metrics. Events
// without a row image, or whose row lacks the scope column, are assumed to.
func affects(scope Scope, e realtime.ChangeEvent) bool {
	if len(e.Payload) == 0 {
		return true
	}
	var row map[string]any
	if err := json.Unmarshal(e.Payload, &row); err != nil {
		return true
	}
	v, ok := row[scope.Column()]
	if !ok || v == nil {
		return true
	}
	id, ok := v.(string)
	return !ok || id == scope.ID
}

func (w *Watch) trigger() {
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

func (w *Watch) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.kick:
			w.recompute()
		}
	}
}

func (w *Watch) recompute() {
	summary, err := w.r.Compute(w.ctx, w.scope)
	if w.ctx.Err() != nil {
		return
	}

	w.mu.Lock()
	res := w.last
	res.ComputedAt = w.r.now()
	res.Error = err
	if err == nil {
		res.Summary = summary
		res.HasSummary = true
	}
	w.last = res
	w.mu.Unlock()

	if w.onUpdate != nil {
		w.onUpdate(res)
	}
}

// Latest returns the most recent result. Before the first computation
// completes it has neither Summary nor Error.
func (w *Watch) Latest() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Refresh requests a recomputation outside the change stream.
func (w *Watch) Refresh() {
	w.trigger()
}

// Close stops watching. It is idempotent and waits for an in-progress
// computation to be abandoned.
func (w *Watch) Close() {
	w.once.Do(func() {
		w.listener.Close()
		w.cancel()
		<-w.done
	})
}
