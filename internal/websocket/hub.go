// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package websocket

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types pushed to dashboard clients.
const (
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeChange       = "change"
	MessageTypeInvalidate   = "invalidate"
	MessageTypeNotification = "notification"
	MessageTypeAnalytics    = "analytics"
	MessageTypeFocus        = "focus" // client to server
)

// Message is one websocket frame. UserID restricts delivery to that user's
// connections; it is never serialized.
type Message struct {
	Type   string `json:"type"`
	Data   any    `json:"data"`
	UserID string `json:"-"`
}

// ChangeData is sent with change messages.
type ChangeData struct {
	Table string `json:"table"`
	Kind  string `json:"kind"`
}

// InvalidateData tells a user's dashboard which resources went stale.
type InvalidateData struct {
	Resources []string `json:"resources"`
	Timestamp string   `json:"timestamp"`
}

// NotificationData is a user-facing toast.
type NotificationData struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
	onFocus    atomic.Pointer[func(userID string)]
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// SetFocusHandler sets the function called when a user's client reports
// focus. A nil fn disables focus handling.
func (h *Hub) SetFocusHandler(fn func(userID string)) {
	if fn == nil {
		h.onFocus.Store(nil)
		return
	}
	h.onFocus.Store(&fn)
}

func (h *Hub) focus(userID string) {
	if fn := h.onFocus.Load(); fn != nil && userID != "" {
		(*fn)(userID)
	}
}

// RunWithContext runs the hub until ctx is done, then closes every client
// and returns ctx.Err().
//
// Cancellation is checked first, then client lifecycle events, then
// broadcasts, so client state is settled before a message is fanned out.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// Serve implements suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	return h.RunWithContext(ctx)
}

func (h *Hub) String() string {
	return "websocket-hub"
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Str("user_id", client.userID).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Set(float64(n))
	logging.Info().Int("total_clients", n).Msg("websocket client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// sortedClients returns clients in connection order. Caller holds h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	slices.SortFunc(clients, func(a, b *Client) int {
		switch {
		case a.id < b.id:
			return -1
		case a.id > b.id:
			return 1
		}
		return 0
	})
	return clients
}

// broadcastToClients delivers message in connection order. Clients whose
// send buffer is full are dropped.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		if message.UserID != "" && client.userID != message.UserID {
			continue
		}
		select {
		case client.send <- message:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WSConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WSConnections.Set(0)
}

func (h *Hub) enqueue(message Message) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		logging.Warn().Str("message_type", message.Type).Msg("broadcast channel full, dropping message")
		return false
	}
}

// BroadcastJSON sends data to every connected client.
func (h *Hub) BroadcastJSON(messageType string, data any) {
	h.enqueue(Message{Type: messageType, Data: data})
}

// SendToUser sends data to the connections of one user.
func (h *Hub) SendToUser(userID, messageType string, data any) {
	h.enqueue(Message{Type: messageType, Data: data, UserID: userID})
}

// BroadcastChange tells every client that a table changed.
func (h *Hub) BroadcastChange(table, kind string) {
	h.enqueue(Message{Type: MessageTypeChange, Data: ChangeData{Table: table, Kind: kind}})
}

// SendInvalidation tells a user's dashboard which resources went stale.
func (h *Hub) SendInvalidation(userID string, resources []string) {
	data := InvalidateData{
		Resources: resources,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.enqueue(Message{Type: MessageTypeInvalidate, Data: data, UserID: userID}) {
		logging.Debug().Str("user_id", userID).Strs("resources", resources).Msg("sent invalidation")
	}
}

// BroadcastNotification sends a toast to one user, or to everyone when
// userID is empty.
func (h *Hub) BroadcastNotification(userID, kind, message string) {
	h.enqueue(Message{
		Type:   MessageTypeNotification,
		UserID: userID,
		Data: NotificationData{
			Kind:      kind,
			Message:   message,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
