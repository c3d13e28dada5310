// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package services

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/thejerf/suture/v4"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
)

// Sweeper matches *fetch.Client's sweep loop.
type Sweeper interface {
	Run(ctx context.Context, interval time.Duration) error
}

// FetchSweeperService garbage-collects unobserved Managed Fetch Cache
// records every interval.
type FetchSweeperService struct {
	client   Sweeper
	interval time.Duration
}

// NewFetchSweeperService wraps client. A non-positive interval means 1m.
func NewFetchSweeperService(client Sweeper, interval time.Duration) *FetchSweeperService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &FetchSweeperService{client: client, interval: interval}
}

// Serve implements suture.Service.
func (s *FetchSweeperService) Serve(ctx context.Context) error {
	return s.client.Run(ctx, s.interval)
}

func (s *FetchSweeperService) String() string {
	return "fetch-sweeper"
}

// ValueLogGC matches *badger.DB.
type ValueLogGC interface {
	RunValueLogGC(discardRatio float64) error
}

// ValueLogGCService reclaims BadgerDB value-log space held by expired and
// overwritten preference records.
type ValueLogGCService struct {
	db           ValueLogGC
	interval     time.Duration
	discardRatio float64
}

// NewValueLogGCService wraps db. A non-positive interval means 10m.
func NewValueLogGCService(db ValueLogGC, interval time.Duration) *ValueLogGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &ValueLogGCService{db: db, interval: interval, discardRatio: 0.5}
}

// Serve implements suture.Service. An in-memory database has no value log;
// the service then stops for good.
func (s *ValueLogGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rewrites, err := s.collect(ctx)
			switch {
			case errors.Is(err, badger.ErrGCInMemoryMode):
				return suture.ErrDoNotRestart
			case err != nil:
				logging.Warn().Err(err).Msg("preference store value log GC failed")
			case rewrites > 0:
				logging.Debug().Int("rewrites", rewrites).Msg("preference store value log collected")
			}
		}
	}
}

// collect runs GC until a pass rewrites nothing.
func (s *ValueLogGCService) collect(ctx context.Context) (int, error) {
	rewrites := 0
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.discardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return rewrites, nil
		}
		if err != nil {
			return rewrites, err
		}
		rewrites++
	}
	return rewrites, nil
}

func (s *ValueLogGCService) String() string {
	return "prefs-gc"
}
