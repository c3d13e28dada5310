// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/cache"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/fetch"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/notify"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
)

// Data-integrity errors. Both are fatal for the load that hits them.
var (
	ErrCreatorNotFound  = errors.New("dashboard: no creator for user")
	ErrMultipleCreators = errors.New("dashboard: more than one creator for user")
)

var (
	ErrUnknownResource = errors.New("dashboard: unknown resource")
	ErrNoStream        = errors.New("dashboard: no change stream configured")
	ErrMissingUser     = errors.New("dashboard: user id is required")
)

// compositeRoot is the first segment of every composite fetch key.
const compositeRoot = "dashboard"

// CompositeKey is the Managed Fetch Cache key of a user's composite.
func CompositeKey(userID string) fetch.Key {
	return fetch.Key{compositeRoot, userID}
}

// Pusher tells a user's open dashboards which resources went stale.
// *websocket.Hub implements it.
type Pusher interface {
	SendInvalidation(userID string, resources []string)
}

// Snapshot is a composite plus how fresh it is. When a background refetch
// failed, Composite is the last good value and Err is set.
type Snapshot struct {
	Composite  models.Composite
	UpdatedAt  time.Time
	Stale      bool
	Refetching bool
	Err        error
}

// Facade assembles dashboard composites for users. The Managed Fetch Cache
// holds composites and is authoritative; the Keyed Query Cache holds the
// sub-queries and per-user copies of each slice as a secondary index.
type Facade struct {
	src      remote.Source
	qc       *cache.QueryCache
	fc       *fetch.Client
	ttls     TTLs
	opts     fetch.Options
	stream   realtime.Subscriber
	window   time.Duration
	notifier notify.Notifier
	pusher   Pusher
	now      func() time.Time
	logger   zerolog.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithFetchOptions sets the lifecycle of composite records.
func WithFetchOptions(opts fetch.Options) Option {
	return func(f *Facade) { f.opts = opts }
}

// WithChangeStream enables Watch.
func WithChangeStream(stream realtime.Subscriber, window time.Duration) Option {
	return func(f *Facade) {
		f.stream = stream
		f.window = window
	}
}

// WithNotifier reports background refresh failures from Watch.
func WithNotifier(n notify.Notifier) Option {
	return func(f *Facade) { f.notifier = n }
}

// WithPusher forwards Watch invalidations to open dashboards.
func WithPusher(p Pusher) Option {
	return func(f *Facade) { f.pusher = p }
}

// WithClock sets the time source for LoadedAt.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		if now != nil {
			f.now = now
		}
	}
}

// New creates a Facade. A resource missing from ttls is effectively not
// cached by the Keyed Query Cache; build ttls with TTLsFromConfig.
func New(src remote.Source, qc *cache.QueryCache, fc *fetch.Client, ttls TTLs, opts ...Option) *Facade {
	f := &Facade{
		src:    src,
		qc:     qc,
		fc:     fc,
		ttls:   ttls,
		window: realtime.DefaultDebounceWindow,
		now:    time.Now,
		logger: logging.WithComponent("dashboard"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheLen returns the number of composite records held.
func (f *Facade) CacheLen() int {
	return f.fc.Len()
}

// Load returns the user's composite. Cached data is returned even when
// stale (a background refresh starts); an error is returned only when no
// data could be loaded at all. The result shares nothing with the caches.
func (f *Facade) Load(ctx context.Context, userID string) (models.Composite, error) {
	snap, err := f.Snapshot(ctx, userID)
	if err != nil {
		return models.Composite{}, err
	}
	return snap.Composite, nil
}

// Snapshot is Load with freshness information and stale-on-error details.
func (f *Facade) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, ErrMissingUser
	}
	start := time.Now()
	st := f.fc.Query(ctx, CompositeKey(userID), f.fetcher(userID, false), f.opts)
	return f.snapshot(st, start)
}

// Refresh reloads the user's composite. With force the composite is
// fetched again right away, bypassing every cache tier for this fetch and
// rewriting the sub-resource entries it passes through. Without force the
// composite is marked stale and the stale data is returned while a
// background refetch runs.
func (f *Facade) Refresh(ctx context.Context, userID string, force bool) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, ErrMissingUser
	}
	key := CompositeKey(userID)
	if !force {
		f.fc.Invalidate(key)
		return f.Snapshot(ctx, userID)
	}
	start := time.Now()
	st := f.fc.Refetch(ctx, key, f.fetcher(userID, true), f.opts)
	return f.snapshot(st, start)
}

// Invalidate drops resource from the Keyed Query Cache for every user.
// Composites already returned are unaffected; the next composite fetch
// reloads the resource.
func (f *Facade) Invalidate(resource string) error {
	if !ValidResource(resource) {
		return fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	n := f.qc.InvalidateResource(resource)
	f.logger.Debug().Str("resource", resource).Int("entries", n).Msg("resource invalidated")
	return nil
}

// Focus tells the facade the user's dashboard regained focus. A watched
// composite that went stale is refetched in the background when the fetch
// options enable RefetchOnFocus. It returns how many fetches were started.
func (f *Facade) Focus(userID string) int {
	if userID == "" {
		return 0
	}
	n := f.fc.Focus(CompositeKey(userID))
	if n > 0 {
		f.logger.Debug().Str("user_id", userID).Int("fetches", n).Msg("refetching on focus")
	}
	return n
}

// Resource returns one sub-resource for the user without fetching the
// whole composite. It is served from the per-user cache entry, then from a
// cached composite, then from the sub-queries it depends on.
func (f *Facade) Resource(ctx context.Context, userID, resource string) (any, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	if !ValidResource(resource) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
	}
	filters := userFilters(userID)
	if v, ok := cache.Lookup[any](f.qc, resource, filters); ok {
		return cloneValue(v), nil
	}

	if st, ok := f.fc.Peek(CompositeKey(userID)); ok && st.HasData() && !st.IsStale {
		if comp, ok := st.Data.(models.Composite); ok {
			v, err := slice(comp, resource)
			if err != nil {
				return nil, err
			}
			f.qc.Put(resource, filters, cloneValue(v), f.ttls[resource])
			return v, nil
		}
	}

	v, err := f.loadResource(ctx, userID, resource)
	if err != nil {
		return nil, err
	}
	f.qc.Put(resource, filters, cloneValue(v), f.ttls[resource])
	return v, nil
}

func (f *Facade) snapshot(st fetch.State, start time.Time) (Snapshot, error) {
	if !st.HasData() {
		metrics.RecordDashboardLoad("error", time.Since(start))
		if st.Error == nil {
			st.Error = errors.New("dashboard: load returned no data")
		}
		return Snapshot{}, st.Error
	}
	comp, ok := st.Data.(models.Composite)
	if !ok {
		metrics.RecordDashboardLoad("error", time.Since(start))
		return Snapshot{}, fmt.Errorf("dashboard: cached composite has type %T", st.Data)
	}

	result := "fresh"
	switch {
	case st.Error != nil:
		result = "stale_error"
	case st.IsStale:
		result = "stale"
	}
	metrics.RecordDashboardLoad(result, time.Since(start))

	return Snapshot{
		Composite:  comp.Clone(),
		UpdatedAt:  st.UpdatedAt,
		Stale:      st.IsStale,
		Refetching: st.IsRefetching,
		Err:        st.Error,
	}, nil
}

func (f *Facade) fetcher(userID string, bypass bool) fetch.Fetcher {
	return func(ctx context.Context) (any, error) {
		return f.build(ctx, userID, bypass)
	}
}

// build fetches the composite in dependency stages, running each stage's
// queries in parallel:
//
//	creator
//	clients, support requests, assets   (by creator)
//	projects                            (by clients)
//	chatbots, analytics, requests, leads (by projects)
func (f *Facade) build(ctx context.Context, userID string, bypass bool) (models.Composite, error) {
	start := time.Now()
	var comp models.Composite
	gens := make(map[string]cache.Generation, len(Resources))
	for _, r := range Resources {
		gens[r] = f.qc.Generation(r)
	}

	creator, err := f.creator(ctx, userID, bypass)
	if err != nil {
		return comp, err
	}
	comp.Creator = creator

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		comp.Clients, err = byColumn[models.EndClient](gctx, f, ResourceClients, "creator_id", []string{creator.ID}, bypass)
		return err
	})
	g.Go(func() (err error) {
		comp.SupportRequests, err = byColumn[models.SupportRequest](gctx, f, ResourceSupportRequests, "creator_id", []string{creator.ID}, bypass)
		return err
	})
	g.Go(func() (err error) {
		comp.Assets, err = byColumn[models.Asset](gctx, f, ResourceAssets, "creator_id", []string{creator.ID}, bypass)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Composite{}, err
	}

	comp.Projects, err = byColumn[models.Project](ctx, f, ResourceProjects, "end_client_id", clientIDs(comp.Clients), bypass)
	if err != nil {
		return models.Composite{}, err
	}

	projectIDs := comp.ProjectIDs()
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		comp.Chatbots, err = byColumn[models.Chatbot](gctx, f, ResourceChatbots, "project_id", projectIDs, bypass)
		return err
	})
	g.Go(func() (err error) {
		comp.Analytics, err = byColumn[models.AnalyticsEvent](gctx, f, ResourceAnalytics, "project_id", projectIDs, bypass)
		return err
	})
	g.Go(func() (err error) {
		comp.Requests, err = byColumn[models.Request](gctx, f, ResourceRequests, "project_id", projectIDs, bypass)
		return err
	})
	g.Go(func() (err error) {
		comp.Leads, err = byColumn[models.Lead](gctx, f, ResourceLeads, "project_id", projectIDs, bypass)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.Composite{}, err
	}

	comp.LoadedAt = f.now()
	f.writeThrough(userID, comp, gens)

	logging.Ctx(ctx).Debug().
		Str("user_id", userID).
		Bool("bypass", bypass).
		Interface("counts", comp.Counts()).
		Dur("duration", time.Since(start)).
		Msg("dashboard composite built")
	return comp, nil
}

// writeThrough stores a copy of every slice under the user's own key,
// skipping resources invalidated while the composite was being built.
func (f *Facade) writeThrough(userID string, comp models.Composite, gens map[string]cache.Generation) {
	filters := userFilters(userID)
	for _, r := range Resources {
		v, err := slice(comp, r)
		if err != nil {
			continue
		}
		f.qc.PutIf(r, filters, v, f.ttls[r], gens[r])
	}
}

// loadResource runs only the stages resource depends on.
func (f *Facade) loadResource(ctx context.Context, userID, resource string) (any, error) {
	creator, err := f.creator(ctx, userID, false)
	if err != nil {
		return nil, err
	}
	byCreator := []string{creator.ID}

	switch resource {
	case ResourceCreator:
		return creator, nil
	case ResourceSupportRequests:
		return byColumn[models.SupportRequest](ctx, f, resource, "creator_id", byCreator, false)
	case ResourceAssets:
		return byColumn[models.Asset](ctx, f, resource, "creator_id", byCreator, false)
	}

	clients, err := byColumn[models.EndClient](ctx, f, ResourceClients, "creator_id", byCreator, false)
	if err != nil || resource == ResourceClients {
		return clients, err
	}
	projects, err := byColumn[models.Project](ctx, f, ResourceProjects, "end_client_id", clientIDs(clients), false)
	if err != nil || resource == ResourceProjects {
		return projects, err
	}
	ids := models.Composite{Projects: projects}.ProjectIDs()

	switch resource {
	case ResourceChatbots:
		return byColumn[models.Chatbot](ctx, f, resource, "project_id", ids, false)
	case ResourceAnalytics:
		return byColumn[models.AnalyticsEvent](ctx, f, resource, "project_id", ids, false)
	case ResourceRequests:
		return byColumn[models.Request](ctx, f, resource, "project_id", ids, false)
	case ResourceLeads:
		return byColumn[models.Lead](ctx, f, resource, "project_id", ids, false)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
}

// creator resolves the single creator row of userID.
func (f *Facade) creator(ctx context.Context, userID string, bypass bool) (models.Creator, error) {
	filters := map[string]any{"user_id": userID}
	load := func(ctx context.Context) (models.Creator, error) {
		rows, err := remote.QueryAs[models.Creator](ctx, f.src, models.TableCreators, remote.Where("user_id", userID))
		if err != nil {
			return models.Creator{}, err
		}
		switch len(rows) {
		case 0:
			return models.Creator{}, fmt.Errorf("%w: %s", ErrCreatorNotFound, userID)
		case 1:
			return rows[0], nil
		default:
			logging.Ctx(ctx).Error().Str("user_id", userID).Int("creators", len(rows)).Msg("user maps to several creators")
			return models.Creator{}, fmt.Errorf("%w: %s has %d", ErrMultipleCreators, userID, len(rows))
		}
	}
	if bypass {
		c, err := load(ctx)
		if err == nil {
			f.qc.Put(ResourceCreator, filters, c, f.ttls[ResourceCreator])
		}
		return c, err
	}
	return cache.GetOrFetch(ctx, f.qc, ResourceCreator, filters, load, f.ttls[ResourceCreator])
}

// byColumn loads the rows of resource whose column is one of ids, through
// the Keyed Query Cache unless bypass is set. The returned slice is a copy.
func byColumn[T any](ctx context.Context, f *Facade, resource, column string, ids []string, bypass bool) ([]T, error) {
	filters := map[string]any{column: ids}
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	filter := remote.Filter{}.In(column, values...).Order("created_at", true)
	load := func(ctx context.Context) ([]T, error) {
		return remote.QueryAs[T](ctx, f.src, resourceTables[resource], filter)
	}

	var (
		rows []T
		err  error
	)
	if bypass {
		rows, err = load(ctx)
		if err == nil {
			f.qc.Put(resource, filters, rows, f.ttls[resource])
		}
	} else {
		rows, err = cache.GetOrFetch(ctx, f.qc, resource, filters, load, f.ttls[resource])
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", resource, err)
	}
	return append(make([]T, 0, len(rows)), rows...), nil
}

func userFilters(userID string) map[string]any {
	return map[string]any{"user_id": userID}
}

func clientIDs(clients []models.EndClient) []string {
	ids := make([]string, len(clients))
	for i, c := range clients {
		ids[i] = c.ID
	}
	return ids
}
