// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package realtime carries row-change notifications from the hosted store to
the caching layers.

Changes travel as ChangeEvent values over a Stream, a thin wrapper around a
Watermill publisher/subscriber pair with one topic per table
("<prefix>.<table>"). Two transports are provided:

  - NewMemoryStream: Watermill GoChannel, for a single process and tests
  - NewNATSStream: Watermill NATS (core NATS, no JetStream), so that every
    dashboard instance sees every change

WSFeed connects to the hosted store's realtime websocket endpoint, decodes
its change frames and publishes them on a Stream. It runs as a supervised
service and reconnects with backoff.

A Listener subscribes to a set of tables and coalesces bursts of events
with a Debouncer, so a batch of writes produces one callback per quiet
period:

	l, err := realtime.Listen(stream, []string{"projects", "leads"}, time.Second,
		func(b realtime.Burst) {
			for _, table := range b.Tables {
				queryCache.InvalidateResource(table)
			}
		})
	if err != nil {
		return err
	}
	defer l.Close()

Each Listener owns its debouncer; listeners never share timers.
*/
package realtime
