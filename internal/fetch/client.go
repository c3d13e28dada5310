// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package fetch

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// record is the managed state for one key. All fields are guarded by
// Client.mu.
type record struct {
	key Key

	data      any
	hasData   bool
	updatedAt time.Time
	staleAt   time.Time
	gcAt      time.Time
	err       error

	// invalidated forces staleness until the next successful fetch that
	// started after the invalidation.
	invalidated bool
	// generation increments on every invalidation. A fetch that started
	// under an older generation leaves the record stale.
	generation uint64

	fetching  bool
	fetchDone chan struct{}

	opts      Options
	fetcher   Fetcher
	observers map[*Observer]struct{}
}

func (r *record) isStale(now time.Time) bool {
	return r.hasData && (r.invalidated || now.After(r.staleAt))
}

// collectable reports whether the record may be dropped at now.
func (r *record) collectable(now time.Time) bool {
	return len(r.observers) == 0 && !r.fetching && now.After(r.gcAt)
}

func (r *record) state(now time.Time) State {
	return State{
		Data:         r.data,
		UpdatedAt:    r.updatedAt,
		IsLoading:    r.fetching && !r.hasData,
		IsRefetching: r.fetching && r.hasData,
		IsStale:      r.isStale(now),
		Error:        r.err,
	}
}

func (r *record) reset() {
	r.data = nil
	r.hasData = false
	r.updatedAt = time.Time{}
	r.staleAt = time.Time{}
	r.err = nil
	r.invalidated = false
}

// Client is the managed fetch cache: stale-while-revalidate records keyed by
// Key, with background refetch, polling, focus refetch, prefix invalidation
// and garbage collection of unobserved records.
//
// One Client is created per process and shared by every consumer. At most
// one fetch per key is in flight at any time.
type Client struct {
	mu       sync.Mutex
	records  map[string]*record
	defaults Options
	now      func() time.Time
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDefaults sets the Options used when a caller passes the zero Options.
func WithDefaults(opts Options) ClientOption {
	return func(c *Client) {
		c.defaults = opts.resolve(DefaultOptions())
	}
}

// WithClock overrides the time source used for staleness and gc.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client. Call Close at teardown.
func New(opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		records:  make(map[string]*record),
		defaults: DefaultOptions(),
		now:      time.Now,
		logger:   logging.WithComponent("fetch"),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Defaults returns the client's default Options.
func (c *Client) Defaults() Options {
	return c.defaults
}

// recordFor returns the record for key, creating it if needed, and applies
// lazy garbage collection. Caller holds c.mu.
func (c *Client) recordFor(key Key, fn Fetcher, opts Options, now time.Time) *record {
	id := key.String()
	r, ok := c.records[id]
	if !ok {
		r = &record{key: append(Key(nil), key...), observers: make(map[*Observer]struct{})}
		c.records[id] = r
		metrics.CacheSize.WithLabelValues("fetch").Set(float64(len(c.records)))
	} else if r.hasData && r.collectable(now) {
		r.reset()
		metrics.CacheEvictions.WithLabelValues("fetch").Inc()
	}
	if fn != nil {
		r.fetcher = fn
	}
	r.opts = opts.resolve(c.defaults)
	return r
}

// Query returns the state for key, fetching as needed:
//   - fresh data is returned as is;
//   - stale data is returned immediately and a background refetch starts;
//   - without data the call fetches and waits for the result (or ctx).
//
// A failed first load returns a State with Error and no Data. If ctx ends
// while waiting, the fetch continues for other readers and the returned
// State carries ctx.Err().
func (c *Client) Query(ctx context.Context, key Key, fn Fetcher, opts Options) State {
	c.mu.Lock()
	now := c.now()
	r := c.recordFor(key, fn, opts, now)

	if r.hasData {
		if r.isStale(now) {
			c.startFetch(ctx, r)
			metrics.CacheMisses.WithLabelValues("fetch").Inc()
		} else {
			metrics.CacheHits.WithLabelValues("fetch").Inc()
		}
		st := r.state(now)
		c.mu.Unlock()
		return st
	}

	metrics.CacheMisses.WithLabelValues("fetch").Inc()
	done := c.startFetch(ctx, r)
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		c.mu.Lock()
		st := r.state(c.now())
		c.mu.Unlock()
		if st.Error == nil {
			st.Error = ctx.Err()
		}
		return st
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return r.state(c.now())
}

// Refetch forces a fetch of key that starts after this call and waits for
// it, bypassing freshness. Existing data stays servable to other readers
// until the new result lands. A fetch already in flight is waited out first,
// since its result may predate the call.
func (c *Client) Refetch(ctx context.Context, key Key, fn Fetcher, opts Options) State {
	c.mu.Lock()
	r := c.recordFor(key, fn, opts, c.now())
	r.invalidated = r.hasData
	r.generation++

	for r.fetching {
		done := r.fetchDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			c.mu.Lock()
			st := r.state(c.now())
			c.mu.Unlock()
			st.Error = ctx.Err()
			return st
		}
		c.mu.Lock()
	}

	// A fetch started after the invalidation may already have succeeded
	// (complete() restarts fetches for observed records).
	if r.hasData && !r.invalidated && r.err == nil {
		st := r.state(c.now())
		c.mu.Unlock()
		return st
	}

	done := c.startFetch(ctx, r)
	c.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		c.mu.Lock()
		st := r.state(c.now())
		c.mu.Unlock()
		st.Error = ctx.Err()
		return st
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return r.state(c.now())
}

// Peek returns the current state for key without fetching.
func (c *Client) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[key.String()]
	if !ok {
		return State{}, false
	}
	return r.state(c.now()), true
}

// startFetch begins a fetch for r unless one is already in flight, and
// returns a channel closed when the (possibly joined) fetch completes.
// Caller holds c.mu.
func (c *Client) startFetch(trigger context.Context, r *record) <-chan struct{} {
	if r.fetching {
		return r.fetchDone
	}
	if r.fetcher == nil || c.closed {
		done := make(chan struct{})
		close(done)
		return done
	}

	r.fetching = true
	r.fetchDone = make(chan struct{})
	background := r.hasData
	gen := r.generation
	fn := r.fetcher
	done := r.fetchDone
	c.publish(r)

	// Keep the trigger's values (request IDs) but not its cancellation;
	// only Close aborts an in-flight fetch.
	if trigger == nil {
		trigger = context.Background()
	}
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(trigger))
	stop := context.AfterFunc(c.ctx, cancel)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		defer stop()

		start := time.Now()
		data, err := fn(fetchCtx)
		metrics.RecordFetch(r.key.Root(), background, time.Since(start), err)

		c.mu.Lock()
		c.complete(r, gen, data, err)
		c.mu.Unlock()
		close(done)
	}()
	return done
}

// complete applies a finished fetch. Caller holds c.mu.
func (c *Client) complete(r *record, gen uint64, data any, err error) {
	r.fetching = false
	now := c.now()

	if err != nil {
		// Stale data is never discarded because a refetch failed.
		r.err = err
		if r.hasData {
			c.logger.Warn().Err(err).Str("key", r.key.String()).Msg("background refetch failed, serving stale data")
		} else {
			c.logger.Warn().Err(err).Str("key", r.key.String()).Msg("initial fetch failed")
			if r.gcAt.Before(now) {
				r.gcAt = now
			}
		}
		c.publish(r)
		return
	}

	r.data = data
	r.hasData = true
	r.err = nil
	r.updatedAt = now
	r.staleAt = now.Add(r.opts.StaleTime)
	r.gcAt = now.Add(r.opts.GCTime)
	r.invalidated = r.generation != gen
	c.publish(r)

	// An invalidation landed while this fetch was in flight; the result may
	// predate the change, so observed records fetch again.
	if r.invalidated && len(r.observers) > 0 {
		c.startFetch(c.ctx, r)
	}
}

// Invalidate marks every record whose key starts with prefix as stale and
// returns how many matched. Records keep their data. Observed records start
// a background refetch.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, r := range c.records {
		if !r.key.HasPrefix(prefix) {
			continue
		}
		n++
		r.invalidated = true
		r.generation++
		if len(r.observers) > 0 {
			c.startFetch(c.ctx, r)
		} else {
			c.publish(r)
		}
	}
	if n > 0 {
		metrics.FetchInvalidations.Add(float64(n))
		c.logger.Debug().Str("prefix", prefix.String()).Int("records", n).Msg("records invalidated")
	}
	return n
}

// Focus refetches stale records that have observers with RefetchOnFocus.
// With prefixes, only records under one of them are considered. It returns
// how many fetches were started.
func (c *Client) Focus(prefixes ...Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, r := range c.records {
		if len(r.observers) == 0 || !r.opts.RefetchOnFocus || r.fetching {
			continue
		}
		if len(prefixes) > 0 && !slices.ContainsFunc(prefixes, r.key.HasPrefix) {
			continue
		}
		if !r.hasData || r.isStale(now) {
			c.startFetch(c.ctx, r)
			n++
		}
	}
	return n
}

// SetData stores data for key as a fresh successful fetch.
func (c *Client) SetData(key Key, data any, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	r := c.recordFor(key, nil, opts, now)
	r.data = data
	r.hasData = true
	r.err = nil
	r.updatedAt = now
	r.staleAt = now.Add(r.opts.StaleTime)
	r.gcAt = now.Add(r.opts.GCTime)
	r.invalidated = false
	r.generation++ // results of fetches started before this write are older
	c.publish(r)
}

// Remove drops the data for key. The next read starts from empty. Observers
// stay attached and see the empty state.
func (c *Client) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.String()
	r, ok := c.records[id]
	if !ok {
		return
	}
	r.reset()
	r.generation++
	if len(r.observers) == 0 && !r.fetching {
		delete(c.records, id)
		metrics.CacheSize.WithLabelValues("fetch").Set(float64(len(c.records)))
	} else {
		c.publish(r)
	}
	metrics.CacheEvictions.WithLabelValues("fetch").Inc()
}

// Sweep drops every record past its gc time that has no observers and no
// fetch in flight. It returns how many records were dropped.
func (c *Client) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for id, r := range c.records {
		if r.collectable(now) {
			delete(c.records, id)
			n++
		}
	}
	if n > 0 {
		metrics.CacheEvictions.WithLabelValues("fetch").Add(float64(n))
		metrics.CacheSize.WithLabelValues("fetch").Set(float64(len(c.records)))
	}
	return n
}

// Len returns the number of records held.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Run sweeps every interval until ctx is done.
func (c *Client) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug().Int("evicted", n).Msg("fetch cache swept")
			}
		}
	}
}

// Close cancels in-flight fetches, stops polling and waits for background
// goroutines. Observers are closed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	var observers []*Observer
	for _, r := range c.records {
		for o := range r.observers {
			observers = append(observers, o)
		}
	}
	c.mu.Unlock()

	for _, o := range observers {
		o.Close()
	}
	c.cancel()
	c.wg.Wait()
}

// publish sends the current state to every observer of r.
// Caller holds c.mu.
func (c *Client) publish(r *record) {
	if len(r.observers) == 0 {
		return
	}
	st := r.state(c.now())
	for o := range r.observers {
		o.send(st)
	}
}
