// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

const (
	feedWriteWait     = 10 * time.Second
	feedReadTimeout   = 90 * time.Second
	feedHandshakeWait = 10 * time.Second
	feedMaxFrameSize  = 1 << 20
	feedMaxBackoff    = 2 * time.Minute
)

// Publisher is the publishing side of a Stream.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// FeedConfig configures a WSFeed.
type FeedConfig struct {
	// URL is the store's realtime websocket endpoint (ws:// or wss://).
	URL string
	// APIKey is sent as the apikey header and bearer token.
	APIKey string
	// Tables limits which tables are subscribed and republished.
	Tables []string
	// ReconnectDelay is the first backoff step; it doubles up to two
	// minutes and resets after a successful connection.
	ReconnectDelay time.Duration
}

// feedFrame is one message from the realtime endpoint. Change frames carry
// an upper-case Type (INSERT, UPDATE, DELETE); other types are control
// frames (heartbeat, system) and are ignored.
type feedFrame struct {
	Type      string          `json:"type"`
	Table     string          `json:"table"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

type subscribeFrame struct {
	Type   string   `json:"type"`
	Tables []string `json:"tables"`
}

// WSFeed relays change frames from the store's realtime websocket endpoint
// onto a Stream. It implements suture.Service.
type WSFeed struct {
	cfg    FeedConfig
	pub    Publisher
	tables map[string]bool
	dialer *websocket.Dialer
	now    func() time.Time
	logger zerolog.Logger
}

// NewWSFeed creates a feed publishing into pub.
func NewWSFeed(cfg FeedConfig, pub Publisher) *WSFeed {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	tables := make(map[string]bool, len(cfg.Tables))
	for _, t := range cfg.Tables {
		tables[t] = true
	}
	return &WSFeed{
		cfg:    cfg,
		pub:    pub,
		tables: tables,
		dialer: &websocket.Dialer{HandshakeTimeout: feedHandshakeWait},
		now:    time.Now,
		logger: logging.WithComponent("realtime-feed"),
	}
}

// String names the service for the supervisor.
func (f *WSFeed) String() string {
	return "realtime-feed"
}

// Serve connects and relays frames until ctx is done, reconnecting with
// exponential backoff.
func (f *WSFeed) Serve(ctx context.Context) error {
	delay := f.cfg.ReconnectDelay
	for {
		connected, err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = f.cfg.ReconnectDelay
		}
		f.logger.Warn().Err(err).Dur("retry_in", delay).Msg("realtime feed disconnected")
		metrics.RealtimeFeedReconnects.Inc()

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, feedMaxBackoff)
	}
}

// session runs one connection. connected reports whether the handshake
// succeeded.
func (f *WSFeed) session(ctx context.Context) (connected bool, err error) {
	header := http.Header{}
	if f.cfg.APIKey != "" {
		header.Set("apikey", f.cfg.APIKey)
		header.Set("Authorization", "Bearer "+f.cfg.APIKey)
	}

	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, header)
	if err != nil {
		return false, fmt.Errorf("dial realtime feed: %w", err)
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	metrics.RealtimeFeedConnected.Set(1)
	defer metrics.RealtimeFeedConnected.Set(0)
	f.logger.Info().Str("url", f.cfg.URL).Int("tables", len(f.cfg.Tables)).Msg("realtime feed connected")

	if err := conn.SetWriteDeadline(time.Now().Add(feedWriteWait)); err != nil {
		return true, err
	}
	if err := conn.WriteJSON(subscribeFrame{Type: "subscribe", Tables: f.cfg.Tables}); err != nil {
		return true, fmt.Errorf("send subscribe: %w", err)
	}

	conn.SetReadLimit(feedMaxFrameSize)
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(feedWriteWait))
	})

	for {
		if err := conn.SetReadDeadline(time.Now().Add(feedReadTimeout)); err != nil {
			return true, err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("feed closed by server")
			}
			return true, fmt.Errorf("read frame: %w", err)
		}
		f.handle(ctx, data)
	}
}

func (f *WSFeed) handle(ctx context.Context, data []byte) {
	var frame feedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		f.logger.Warn().Err(err).Msg("undecodable feed frame")
		metrics.RealtimeEventsDropped.WithLabelValues("malformed").Inc()
		return
	}
	kind, err := ParseKind(frame.Type)
	if err != nil {
		// control frame
		return
	}
	if frame.Table == "" || (len(f.tables) > 0 && !f.tables[frame.Table]) {
		metrics.RealtimeEventsDropped.WithLabelValues("unwatched").Inc()
		return
	}

	payload := frame.Record
	if kind == KindDelete {
		payload = frame.OldRecord
	}
	event := ChangeEvent{
		Table:      frame.Table,
		Kind:       kind,
		Payload:    payload,
		ReceivedAt: f.now().UTC(),
	}
	if err := f.pub.Publish(ctx, event); err != nil {
		f.logger.Warn().Err(err).Str("table", frame.Table).Msg("failed to republish change")
		metrics.RealtimeEventsDropped.WithLabelValues("publish").Inc()
	}
}
