// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

type sent struct {
	UserID, Kind, Message string
}

type fakeHub struct {
	mu   sync.Mutex
	sent []sent
}

func (h *fakeHub) BroadcastNotification(userID, kind, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{userID, kind, message})
}

func TestHubNotifierTargetsContextUser(t *testing.T) {
	hub := &fakeHub{}
	n := NewHubNotifier(hub)
	before := testutil.ToFloat64(metrics.Notifications.WithLabelValues("error"))

	ctx := logging.ContextWithUserID(context.Background(), "u1")
	if err := n.Notify(ctx, KindError, "refresh failed"); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), KindSuccess, "saved"); err != nil {
		t.Fatal(err)
	}

	want := []sent{{"u1", "error", "refresh failed"}, {"", "success", "saved"}}
	if diff := cmp.Diff(want, hub.sent); diff != "" {
		t.Errorf("sent mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(metrics.Notifications.WithLabelValues("error")) - before; got != 1 {
		t.Errorf("error notifications = %v", got)
	}
}

func TestLogNotifierWritesStructuredEvent(t *testing.T) {
	var buf bytes.Buffer
	orig := logging.Logger()
	logging.SetLogger(logging.NewTestLogger(&buf))
	t.Cleanup(func() { logging.SetLogger(orig) })

	n := NewLogNotifier()
	if err := n.Notify(logging.ContextWithUserID(context.Background(), "u7"), KindWarning, "stale data"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`"level":"warn"`, `"kind":"warning"`, `"user_id":"u7"`, `"message":"stale data"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log %s missing %s", out, want)
		}
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := Multi{
		Func(func(_ context.Context, k Kind, msg string) error { calls = append(calls, "a:"+msg); return nil }),
		Func(func(_ context.Context, k Kind, msg string) error { calls = append(calls, "b:"+msg); return boom }),
	}
	err := m.Notify(context.Background(), KindInfo, "hi")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if diff := cmp.Diff([]string{"a:hi", "b:hi"}, calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
}

func TestErrorHelper(t *testing.T) {
	hub := &fakeHub{}
	n := NewHubNotifier(hub)
	Error(context.Background(), n, "dashboard refresh", errors.New("503"))
	Error(context.Background(), n, "noop", nil)
	Error(context.Background(), nil, "noop", errors.New("x"))

	if len(hub.sent) != 1 || hub.sent[0].Message != "dashboard refresh failed: 503" || hub.sent[0].Kind != "error" {
		t.Errorf("sent = %+v", hub.sent)
	}
}
