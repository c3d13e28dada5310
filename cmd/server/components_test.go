// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package main

import (
	"context"
	"testing"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/realtime"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
)

func TestInitStream(t *testing.T) {
	stream, err := initStream(&config.RealtimeConfig{Transport: "memory", TopicPrefix: "test"})
	if err != nil {
		t.Fatalf("memory transport: %v", err)
	}
	_ = stream.Close()

	if _, err := initStream(&config.RealtimeConfig{Transport: "carrier-pigeon"}); err == nil {
		t.Error("unknown transport accepted")
	}
}

func TestInitSourceFallsBackToMemory(t *testing.T) {
	stream := realtime.NewMemoryStream()
	defer stream.Close()

	src, breaker, err := initSource(&config.RemoteConfig{}, stream)
	if err != nil {
		t.Fatal(err)
	}
	if breaker != nil {
		t.Error("in-memory store reported a breaker")
	}
	if _, ok := src.(*remote.MemorySource); !ok {
		t.Fatalf("source = %T", src)
	}

	sub, err := stream.Subscribe(context.Background(), models.TableLeads)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Cancel()
	if _, err := src.Insert(context.Background(), models.TableLeads, remote.Row{"name": "Ada"}); err != nil {
		t.Fatal(err)
	}
	select {
	case ev := <-sub.Events():
		if ev.Table != models.TableLeads || ev.Kind != realtime.KindInsert {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("in-memory store did not publish its write")
	}
}

func TestInitSourceREST(t *testing.T) {
	src, breaker, err := initSource(&config.RemoteConfig{URL: "https://store.example.com", Timeout: time.Second}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*remote.RESTClient); !ok || breaker == nil {
		t.Errorf("source = %T, breaker = %v", src, breaker)
	}
	if _, _, err := initSource(&config.RemoteConfig{URL: "::nope"}, nil); err == nil {
		t.Error("bad URL accepted")
	}
}

func TestInitEdgeDisabledWithoutURL(t *testing.T) {
	c, err := initEdge(&config.EdgeConfig{})
	if err != nil || c != nil {
		t.Errorf("initEdge = %v, %v", c, err)
	}
}
