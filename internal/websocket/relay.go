// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package websocket

import (
	"context"
	"errors"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
)

// Relay forwards change events from the realtime stream to every websocket
// client as change messages. Only the table and kind are sent; row images
// stay server-side.
type Relay struct {
	hub    *Hub
	stream realtime.Subscriber
	tables []string
}

// NewRelay creates a relay for tables.
func NewRelay(hub *Hub, stream realtime.Subscriber, tables []string) *Relay {
	return &Relay{hub: hub, stream: stream, tables: tables}
}

// Serve implements suture.Service. It returns when ctx is done or the
// stream closes.
func (r *Relay) Serve(ctx context.Context) error {
	sub, err := r.stream.Subscribe(ctx, r.tables...)
	if err != nil {
		return err
	}
	defer sub.Cancel()

	logging.Info().Strs("tables", r.tables).Msg("change relay started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("change stream closed")
			}
			r.hub.BroadcastChange(e.Table, string(e.Kind))
		}
	}
}

func (r *Relay) String() string {
	return "websocket-relay"
}
