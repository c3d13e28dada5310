// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats-server/v2/server"
)

func runNATSServer(t *testing.T) string {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATSStreamPublishSubscribe(t *testing.T) {
	url := runNATSServer(t)

	stream, err := NewNATSStream(NATSConfig{URL: url, CloseTimeout: time.Second}, WithTopicPrefix("test"))
	if err != nil {
		t.Fatalf("NewNATSStream: %v", err)
	}
	defer stream.Close()

	sub, err := stream.Subscribe(context.Background(), "leads")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Cancel()

	// Core NATS drops messages published before the server registers the
	// subscription, so publish until one arrives.
	event := ChangeEvent{Table: "leads", Kind: KindInsert, Payload: json.RawMessage(`{"id":"l1"}`)}
	deadline := time.After(5 * time.Second)
	for {
		if err := stream.Publish(context.Background(), event); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		select {
		case got := <-sub.Events():
			if got.Table != "leads" || got.Kind != KindInsert || string(got.Payload) != `{"id":"l1"}` {
				t.Errorf("event = %+v", got)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event delivered over nats")
		}
	}
}
