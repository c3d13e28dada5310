// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package fetch

import (
	"sync"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// Observer is a live subscription to one key. While attached it keeps the
// record from being garbage collected, drives polling and receives state
// changes on Updates.
type Observer struct {
	client  *Client
	rec     *record
	updates chan State
	stop    chan struct{}
	once    sync.Once
}

// Observe subscribes to key. It starts a fetch when the record is empty or
// stale, and polls every opts.RefetchInterval while attached.
func (c *Client) Observe(key Key, fn Fetcher, opts Options) *Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	r := c.recordFor(key, fn, opts, now)
	o := &Observer{
		client:  c,
		rec:     r,
		updates: make(chan State, 1),
		stop:    make(chan struct{}),
	}
	if c.closed {
		o.once.Do(func() {
			close(o.stop)
			close(o.updates)
		})
		return o
	}

	r.observers[o] = struct{}{}
	metrics.FetchObservers.Inc()

	if !r.hasData || r.isStale(now) {
		c.startFetch(c.ctx, r)
	}
	o.send(r.state(now))

	if interval := r.opts.RefetchInterval; interval > 0 {
		c.wg.Add(1)
		go o.poll(interval)
	}
	return o
}

// State returns the current state of the observed key.
func (o *Observer) State() State {
	o.client.mu.Lock()
	defer o.client.mu.Unlock()
	return o.rec.state(o.client.now())
}

// Updates delivers state changes. Only the latest undelivered state is
// kept, so a slow reader skips intermediate states but never misses the
// last one. The channel is closed by Close.
func (o *Observer) Updates() <-chan State {
	return o.updates
}

// Close detaches the observer and stops its polling. It does not cancel a
// fetch in flight; the result still lands in the cache. Close is
// idempotent.
func (o *Observer) Close() {
	o.once.Do(func() {
		c := o.client
		c.mu.Lock()
		defer c.mu.Unlock()

		close(o.stop)
		r := o.rec
		if _, ok := r.observers[o]; ok {
			delete(r.observers, o)
			metrics.FetchObservers.Dec()
		}
		if len(r.observers) == 0 {
			// gc is measured from when the last observer left
			if gcAt := c.now().Add(r.opts.GCTime); gcAt.After(r.gcAt) {
				r.gcAt = gcAt
			}
		}
		close(o.updates)
	})
}

// send replaces any undelivered state with st. Caller holds client.mu, and
// Close closes updates under the same lock, so send never races the close.
func (o *Observer) send(st State) {
	select {
	case <-o.stop:
		return
	default:
	}
	select {
	case <-o.updates:
	default:
	}
	select {
	case o.updates <- st:
	default:
	}
}

func (o *Observer) poll(interval time.Duration) {
	defer o.client.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			return
		case <-o.client.ctx.Done():
			return
		case <-ticker.C:
			c := o.client
			c.mu.Lock()
			c.startFetch(c.ctx, o.rec)
			c.mu.Unlock()
		}
	}
}
