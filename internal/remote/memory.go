// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package remote

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
)

// MemorySource is an in-memory Source. Writes publish ChangeEvents when a
// publisher is attached, which makes it a stand-in for the hosted store
// and its realtime feed in tests and local development.
type MemorySource struct {
	mu     sync.Mutex
	tables map[string][]Row
	errs   map[string]error
	calls  map[string]int
	pub    realtime.Publisher
	now    func() time.Time
}

// NewMemorySource creates a source holding the given tables, initially
// empty.
func NewMemorySource(tables ...string) *MemorySource {
	m := &MemorySource{
		tables: make(map[string][]Row, len(tables)),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
		now:    time.Now,
	}
	for _, t := range tables {
		m.tables[t] = nil
	}
	return m
}

// SetPublisher attaches a change publisher. Pass nil to detach.
func (m *MemorySource) SetPublisher(pub realtime.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pub = pub
}

// Seed appends rows to table without publishing changes.
func (m *MemorySource) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], maps.Clone(r))
	}
}

// SeedValues encodes records and seeds them.
func (m *MemorySource) SeedValues(table string, values ...any) error {
	for _, v := range values {
		row, err := Encode(v)
		if err != nil {
			return err
		}
		m.Seed(table, row)
	}
	return nil
}

// FailWith makes every call on table return err until cleared with nil.
func (m *MemorySource) FailWith(table string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, table)
		return
	}
	m.errs[table] = err
}

// Calls returns how many queries table has served.
func (m *MemorySource) Calls(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[table]
}

func (m *MemorySource) check(table string) error {
	if err, ok := m.errs[table]; ok {
		return err
	}
	if _, ok := m.tables[table]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	return nil
}

// Query implements Source.
func (m *MemorySource) Query(ctx context.Context, table string, filter Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[table]++
	if err := m.check(table); err != nil {
		return nil, err
	}

	out := []Row{}
	for _, r := range m.tables[table] {
		if filter.Match(r) {
			out = append(out, maps.Clone(r))
		}
	}
	if len(filter.Orders) > 0 {
		slices.SortStableFunc(out, func(a, b Row) int {
			for _, o := range filter.Orders {
				c := cmp.Compare(formatValue(a[o.Column], false), formatValue(b[o.Column], false))
				if o.Descending {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Insert implements Source. Missing id and created_at columns are filled.
func (m *MemorySource) Insert(ctx context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	if err := m.check(table); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	r := maps.Clone(row)
	if r == nil {
		r = Row{}
	}
	if _, ok := r["id"]; !ok {
		r["id"] = uuid.NewString()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = m.now().UTC().Format(time.RFC3339Nano)
	}
	m.tables[table] = append(m.tables[table], r)
	pub := m.pub
	out := maps.Clone(r)
	m.mu.Unlock()

	m.publish(ctx, pub, table, realtime.KindInsert, out)
	return out, nil
}

// Update implements Source.
func (m *MemorySource) Update(ctx context.Context, table string, filter Filter, patch Row) ([]Row, error) {
	m.mu.Lock()
	if err := m.check(table); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	var updated []Row
	for _, r := range m.tables[table] {
		if !filter.Match(r) {
			continue
		}
		maps.Copy(r, patch)
		updated = append(updated, maps.Clone(r))
	}
	pub := m.pub
	m.mu.Unlock()

	for _, r := range updated {
		m.publish(ctx, pub, table, realtime.KindUpdate, r)
	}
	return updated, nil
}

// Delete implements Source.
func (m *MemorySource) Delete(ctx context.Context, table string, filter Filter) (int, error) {
	m.mu.Lock()
	if err := m.check(table); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	var deleted []Row
	kept := m.tables[table][:0]
	for _, r := range m.tables[table] {
		if filter.Match(r) {
			deleted = append(deleted, r)
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	pub := m.pub
	m.mu.Unlock()

	for _, r := range deleted {
		m.publish(ctx, pub, table, realtime.KindDelete, r)
	}
	return len(deleted), nil
}

func (m *MemorySource) publish(ctx context.Context, pub realtime.Publisher, table string, kind realtime.Kind, row Row) {
	if pub == nil {
		return
	}
	payload, err := json.Marshal(row)
	if err != nil {
		payload = nil
	}
	_ = pub.Publish(ctx, realtime.ChangeEvent{
		Table:      table,
		Kind:       kind,
		Payload:    payload,
		ReceivedAt: m.now().UTC(),
	})
}
