// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// clientIDCounter orders clients for broadcasts.
var clientIDCounter atomic.Uint64

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id     uint64
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	done   chan struct{}
}

// NewClient creates a client for userID's dashboard connection. An empty
// userID receives only broadcasts.
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		id:     clientIDCounter.Add(1),
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan Message, 256),
		done:   make(chan struct{}),
	}
}

// ID returns the client's connection-order identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// UserID returns the user the connection belongs to.
func (c *Client) UserID() string {
	return c.userID
}

// Done is closed once the connection has stopped reading.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// readPump reads client frames until the connection fails. Pings are
// answered with a pong; focus frames are passed to the hub's focus handler.
func (c *Client) readPump() {
	defer func() {
		// The hub may already be gone during shutdown.
		select {
		case c.hub.Unregister <- c:
		case <-time.After(writeWait):
		}
		_ = c.conn.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		switch msg.Type {
		case MessageTypePing:
			select {
			case c.send <- Message{Type: MessageTypePong}:
			default:
			}
		case MessageTypeFocus:
			c.hub.focus(c.userID)
		}
	}
}

// writePump writes hub messages and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				logging.Warn().Err(err).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
