// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/rs/zerolog"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

const (
	// DefaultTopicPrefix is prepended to table names to form topics.
	DefaultTopicPrefix = "changes"
	// DefaultBufferSize is the per-subscription event buffer.
	DefaultBufferSize = 256
)

// ErrStreamClosed is returned by Publish and Subscribe after Close.
var ErrStreamClosed = errors.New("realtime stream is closed")

// Stream publishes and subscribes to ChangeEvents over a Watermill
// publisher/subscriber pair. It is safe for concurrent use.
type Stream struct {
	pub    message.Publisher
	sub    message.Subscriber
	prefix string
	buffer int
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	close  func() error
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithTopicPrefix sets the topic prefix (default "changes").
func WithTopicPrefix(prefix string) StreamOption {
	return func(s *Stream) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithBufferSize sets the per-subscription event buffer.
func WithBufferSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewStream wraps an existing Watermill publisher and subscriber. Close
// closes both.
func NewStream(pub message.Publisher, sub message.Subscriber, opts ...StreamOption) *Stream {
	s := &Stream{
		pub:    pub,
		sub:    sub,
		prefix: DefaultTopicPrefix,
		buffer: DefaultBufferSize,
		logger: logging.WithComponent("realtime"),
	}
	s.close = func() error {
		return errors.Join(pub.Close(), sub.Close())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewMemoryStream returns a Stream backed by an in-process Watermill
// GoChannel. Events published with no subscriber are dropped.
func NewMemoryStream(opts ...StreamOption) *Stream {
	s := &Stream{buffer: DefaultBufferSize}
	for _, opt := range opts {
		opt(s)
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(s.buffer),
	}, WatermillLogger())

	stream := NewStream(ch, ch, opts...)
	stream.close = ch.Close
	return stream
}

// WatermillLogger adapts the process logger for Watermill components.
func WatermillLogger() watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logging.NewSlogLogger("watermill"))
}

// Topic returns the topic carrying changes for table.
func (s *Stream) Topic(table string) string {
	return s.prefix + "." + table
}

// Publish sends event on its table's topic.
func (s *Stream) Publish(ctx context.Context, event ChangeEvent) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}

	data, err := marshalEvent(event)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("table", event.Table)
	msg.Metadata.Set("kind", string(event.Kind))
	if ctx != nil {
		msg.SetContext(ctx)
	}

	if err := s.pub.Publish(s.Topic(event.Table), msg); err != nil {
		return fmt.Errorf("publish %s change: %w", event.Table, err)
	}
	metrics.RealtimeEventsPublished.WithLabelValues(event.Table).Inc()
	return nil
}

// Subscribe starts receiving changes for tables. The subscription ends
// when ctx is done or Cancel is called.
func (s *Stream) Subscribe(ctx context.Context, tables ...string) (*Subscription, error) {
	if len(tables) == 0 {
		return nil, errors.New("subscribe: no tables")
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrStreamClosed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		events: make(chan ChangeEvent, s.buffer),
		cancel: cancel,
	}

	seen := make(map[string]bool, len(tables))
	for _, table := range tables {
		if seen[table] {
			continue
		}
		seen[table] = true

		msgs, err := s.sub.Subscribe(subCtx, s.Topic(table))
		if err != nil {
			// Stop the pumps already started for earlier tables.
			sub.Cancel()
			sub.wg.Wait()
			close(sub.events)
			return nil, fmt.Errorf("subscribe %s: %w", s.Topic(table), err)
		}
		sub.wg.Add(1)
		go s.pump(subCtx, sub, table, msgs)
	}

	go func() {
		sub.wg.Wait()
		close(sub.events)
	}()
	return sub, nil
}

// pump decodes messages for one topic into the subscription's channel.
func (s *Stream) pump(ctx context.Context, sub *Subscription, table string, msgs <-chan *message.Message) {
	defer sub.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			event, err := unmarshalEvent(msg.Payload)
			// Malformed messages are acked so they are not redelivered.
			msg.Ack()
			if err != nil {
				s.logger.Warn().Err(err).Str("table", table).Str("message_uuid", msg.UUID).Msg("dropping malformed change event")
				metrics.RealtimeEventsDropped.WithLabelValues("malformed").Inc()
				continue
			}
			metrics.RealtimeEventsReceived.WithLabelValues(event.Table).Inc()

			select {
			case sub.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close shuts down the underlying transport. Active subscriptions end.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.close()
}

// Subscription is a live subscription to one or more tables.
type Subscription struct {
	events chan ChangeEvent
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Events delivers changes in arrival order per table. The channel is
// closed after Cancel or when the subscribing context ends.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.events
}

// Cancel ends the subscription. It is idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}
