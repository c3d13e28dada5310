// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// Subscriber is the subscribing side of a Stream.
type Subscriber interface {
	Subscribe(ctx context.Context, tables ...string) (*Subscription, error)
}

// Burst is the set of changes coalesced into one callback.
type Burst struct {
	// Tables lists each changed table once, sorted.
	Tables []string
	// Events are in arrival order.
	Events []ChangeEvent
}

// Has reports whether table changed in the burst.
func (b Burst) Has(table string) bool {
	_, found := slices.BinarySearch(b.Tables, table)
	return found
}

// Listener turns a subscription into debounced burst callbacks.
type Listener struct {
	sub      *Subscription
	debounce *Debouncer
	onBurst  func(Burst)
	logger   zerolog.Logger

	mu      sync.Mutex
	pending []ChangeEvent
	closed  bool

	fireMu sync.Mutex // serializes onBurst
	done   chan struct{}
	once   sync.Once
}

// ListenerOption configures a Listener.
type ListenerOption func(*listenerConfig)

type listenerConfig struct {
	afterFunc AfterFunc
}

// WithAfterFunc injects the timer factory used by the debouncer.
func WithAfterFunc(f AfterFunc) ListenerOption {
	return func(c *listenerConfig) {
		c.afterFunc = f
	}
}

// Listen subscribes to tables and calls onBurst once per quiet period of
// window after a run of changes. A non-positive window uses one second.
func Listen(stream Subscriber, tables []string, window time.Duration, onBurst func(Burst), opts ...ListenerOption) (*Listener, error) {
	if onBurst == nil {
		return nil, errors.New("listen: nil burst callback")
	}
	var cfg listenerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub, err := stream.Subscribe(context.Background(), tables...)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		sub:     sub,
		onBurst: onBurst,
		logger:  logging.WithComponent("realtime"),
		done:    make(chan struct{}),
	}
	l.debounce = NewDebouncer(window, l.flush, cfg.afterFunc)

	go l.run()
	return l, nil
}

func (l *Listener) run() {
	defer close(l.done)
	for event := range l.sub.Events() {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			continue
		}
		l.pending = append(l.pending, event)
		l.mu.Unlock()
		l.debounce.Trigger()
	}
}

// flush delivers the accumulated events as one Burst.
func (l *Listener) flush() {
	l.fireMu.Lock()
	defer l.fireMu.Unlock()

	l.mu.Lock()
	if l.closed || len(l.pending) == 0 {
		l.mu.Unlock()
		return
	}
	events := l.pending
	l.pending = nil
	l.mu.Unlock()

	tables := make([]string, 0, 4)
	for _, e := range events {
		tables = append(tables, e.Table)
	}
	slices.Sort(tables)
	tables = slices.Compact(tables)

	metrics.RecordBurst(len(events))
	l.logger.Debug().Strs("tables", tables).Int("events", len(events)).Msg("change burst")
	l.onBurst(Burst{Tables: tables, Events: events})
}

// Close stops the listener: the pending timer is cancelled, the
// subscription ends and no further callbacks start. It is idempotent.
func (l *Listener) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.pending = nil
		l.mu.Unlock()

		l.debounce.Stop()
		l.sub.Cancel()
		<-l.done
	})
}
