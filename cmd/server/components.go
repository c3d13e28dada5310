// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package main

import (
	"fmt"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/api"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/edge"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
)

// natsCloseTimeout bounds how long the NATS publisher drains on shutdown.
const natsCloseTimeout = 5 * time.Second

// initStream selects the change event transport.
func initStream(cfg *config.RealtimeConfig) (*realtime.Stream, error) {
	opts := []realtime.StreamOption{
		realtime.WithTopicPrefix(cfg.TopicPrefix),
		realtime.WithBufferSize(cfg.BufferSize),
	}
	switch cfg.Transport {
	case "nats":
		stream, err := realtime.NewNATSStream(realtime.NATSConfig{
			URL:           cfg.NATSURL,
			QueueGroup:    cfg.NATSQueueGroup,
			MaxReconnects: cfg.NATSMaxReconnects,
			ReconnectWait: cfg.NATSReconnectWait,
			CloseTimeout:  natsCloseTimeout,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		logging.Info().Str("url", cfg.NATSURL).Msg("Change events over NATS")
		return stream, nil
	case "memory", "":
		logging.Info().Msg("Change events in process (single instance)")
		return realtime.NewMemoryStream(opts...), nil
	default:
		return nil, fmt.Errorf("unknown realtime transport %q", cfg.Transport)
	}
}

// initSource connects to the hosted store. Without a URL the process runs
// against an empty in-memory store, which publishes its own changes on
// stream so the dashboard still reacts to writes.
func initSource(cfg *config.RemoteConfig, stream realtime.Publisher) (remote.Source, api.BreakerReporter, error) {
	if cfg.URL == "" {
		logging.Warn().Msg("REMOTE_URL not set: using an empty in-memory store (development only)")
		src := remote.NewMemorySource(models.DashboardTables...)
		src.SetPublisher(stream)
		return src, nil, nil
	}
	client, err := remote.NewRESTClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	logging.Info().Str("url", cfg.URL).Msg("Remote store configured")
	return client, client, nil
}

// initEdge returns nil when no edge URL is configured; the provisioning
// and chatbot endpoints then answer 503.
func initEdge(cfg *config.EdgeConfig) (*edge.Client, error) {
	if cfg.URL == "" {
		logging.Info().Msg("EDGE_URL not set: provisioning and chatbot endpoints disabled")
		return nil, nil
	}
	return edge.NewClient(cfg)
}
