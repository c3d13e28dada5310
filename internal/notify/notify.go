// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package notify emits user-facing success and error signals. It does not
// render anything; delivery is up to the Notifier (logs, websocket toasts).
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// Kind classifies a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notifier delivers one notification. Implementations must be safe for
// concurrent use and must not block on slow consumers.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, kind Kind, message string) error

// Notify implements Notifier.
func (f Func) Notify(ctx context.Context, kind Kind, message string) error {
	return f(ctx, kind, message)
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: logging.WithComponent("notify")}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, kind Kind, message string) error {
	var ev *zerolog.Event
	switch kind {
	case KindError:
		ev = n.logger.Error()
	case KindWarning:
		ev = n.logger.Warn()
	default:
		ev = n.logger.Info()
	}
	if id := logging.UserIDFromContext(ctx); id != "" {
		ev = ev.Str("user_id", id)
	}
	ev.Str("kind", string(kind)).Msg(message)
	metrics.Notifications.WithLabelValues(string(kind)).Inc()
	return nil
}

// Broadcaster is the part of the websocket hub HubNotifier needs.
type Broadcaster interface {
	BroadcastNotification(userID, kind, message string)
}

// HubNotifier pushes notifications to dashboard websocket clients. The
// user is taken from ctx (logging.ContextWithUserID); without one the
// notification goes to every client.
type HubNotifier struct {
	hub Broadcaster
}

// NewHubNotifier creates a HubNotifier.
func NewHubNotifier(hub Broadcaster) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Notify implements Notifier.
func (n *HubNotifier) Notify(ctx context.Context, kind Kind, message string) error {
	n.hub.BroadcastNotification(logging.UserIDFromContext(ctx), string(kind), message)
	metrics.Notifications.WithLabelValues(string(kind)).Inc()
	return nil
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, kind Kind, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, kind, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Error notifies err with a short prefix, e.g. Error(ctx, n, "refresh", err).
// It is a no-op when err or n is nil.
func Error(ctx context.Context, n Notifier, action string, err error) {
	if n == nil || err == nil {
		return
	}
	if nerr := n.Notify(ctx, KindError, fmt.Sprintf("%s failed: %v", action, err)); nerr != nil {
		logging.Ctx(ctx).Warn().Err(nerr).Msg("notification delivery failed")
	}
}
