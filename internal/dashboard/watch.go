// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package dashboard

import (
	"context"
	"sync"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/fetch"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/notify"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
)

// Watch keeps one user's composite current while a dashboard is open.
//
// It observes the composite key, so the composite is not garbage collected
// and every invalidation refetches it in the background. Each debounced
// burst of changes drops the affected sub-resources from the Keyed Query
// Cache and marks the composite stale. Background failures are reported
// through the notifier; the last good composite stays readable.
type Watch struct {
	f        *Facade
	userID   string
	observer *fetch.Observer
	listener *realtime.Listener
	ctx      context.Context
	done     chan struct{}
	once     sync.Once
}

// Watch starts watching userID's dashboard.
func (f *Facade) Watch(userID string, opts ...realtime.ListenerOption) (*Watch, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if f.stream == nil {
		return nil, ErrNoStream
	}

	w := &Watch{
		f:      f,
		userID: userID,
		ctx:    logging.ContextWithUserID(context.Background(), userID),
		done:   make(chan struct{}),
	}

	// Subscribe before observing so a change during the first load is not lost.
	l, err := realtime.Listen(f.stream, models.DashboardTables, f.window, w.onBurst, opts...)
	if err != nil {
		return nil, err
	}
	w.listener = l
	w.observer = f.fc.Observe(CompositeKey(userID), f.fetcher(userID, false), f.opts)

	go w.report()
	return w, nil
}

// State returns the observed composite state without fetching.
func (w *Watch) State() fetch.State {
	return w.observer.State()
}

func (w *Watch) onBurst(b realtime.Burst) {
	resources := ResourcesForTables(b.Tables)
	for _, r := range resources {
		w.f.qc.InvalidateResource(r)
	}
	n := w.f.fc.Invalidate(CompositeKey(w.userID))
	logging.Ctx(w.ctx).Debug().
		Strs("tables", b.Tables).
		Strs("resources", resources).
		Int("events", len(b.Events)).
		Int("records", n).
		Msg("dashboard invalidated by changes")

	if w.f.pusher != nil && len(resources) > 0 {
		w.f.pusher.SendInvalidation(w.userID, resources)
	}
}

// report surfaces fetch failures. A failure is reported once until a
// fetch succeeds again.
func (w *Watch) report() {
	defer close(w.done)
	failing := false
	for st := range w.observer.Updates() {
		switch {
		case st.Error != nil && !failing:
			failing = true
			action := "dashboard refresh"
			if !st.HasData() {
				action = "dashboard load"
			}
			notify.Error(w.ctx, w.f.notifier, action, st.Error)
		case st.Error == nil && !st.IsLoading && !st.IsRefetching && st.HasData():
			failing = false
		}
	}
}

// Close stops watching. Fetches in flight complete and populate the cache.
// Close is idempotent.
func (w *Watch) Close() {
	w.once.Do(func() {
		w.listener.Close()
		w.observer.Close()
		<-w.done
	})
}
