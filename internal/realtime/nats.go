// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	natsgo "github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS transport.
type NATSConfig struct {
	URL string
	// QueueGroup load-balances events across subscribers sharing the
	// group. Leave empty for cache invalidation, where every instance must
	// see every change.
	QueueGroup    string
	MaxReconnects int
	ReconnectWait time.Duration
	CloseTimeout  time.Duration
}

// NewNATSStream returns a Stream over core NATS. Change events are
// invalidation signals, not records, so JetStream persistence is disabled.
func NewNATSStream(cfg NATSConfig, opts ...StreamOption) (*Stream, error) {
	logger := WatermillLogger()
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 10 * time.Second
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("tourcompanion-dashboard"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return NewStream(pub, sub, opts...), nil
}
