// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package api

import (
	"errors"
	"sync"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/dashboard"
)

// watchSet shares one dashboard watch between all of a user's open
// connections. The watch closes when the last connection releases it.
type watchSet struct {
	mu      sync.Mutex
	dash    *dashboard.Facade
	entries map[string]*watchEntry
}

type watchEntry struct {
	w    *dashboard.Watch
	refs int
}

func newWatchSet(dash *dashboard.Facade) *watchSet {
	return &watchSet{dash: dash, entries: make(map[string]*watchEntry)}
}

// acquire starts or joins userID's watch and returns its release func.
// Without a change stream there is nothing to watch and release is a no-op.
func (s *watchSet) acquire(userID string) (func(), error) {
	if s.dash == nil {
		return func() {}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		w, err := s.dash.Watch(userID)
		if errors.Is(err, dashboard.ErrNoStream) {
			return func() {}, nil
		}
		if err != nil {
			return nil, err
		}
		e = &watchEntry{w: w}
		s.entries[userID] = e
	}
	e.refs++

	var once sync.Once
	return func() { once.Do(func() { s.release(userID, e) }) }, nil
}

func (s *watchSet) release(userID string, e *watchEntry) {
	s.mu.Lock()
	e.refs--
	last := e.refs == 0 && s.entries[userID] == e
	if last {
		delete(s.entries, userID)
	}
	s.mu.Unlock()

	if last {
		e.w.Close()
	}
}

// active returns the number of users with an open watch.
func (s *watchSet) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// refs returns how many connections hold userID's watch.
func (s *watchSet) refs(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[userID]; ok {
		return e.refs
	}
	return 0
}

func (s *watchSet) closeAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[string]*watchEntry)
	s.mu.Unlock()

	for _, e := range entries {
		e.w.Close()
	}
}
