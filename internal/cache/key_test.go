// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package cache

import (
	"strings"
	"testing"
)

func TestKeyIsOrderIndependent(t *testing.T) {
	a := map[string]any{}
	a["creator_id"] = "cr1"
	a["status"] = "active"
	a["end_client_id"] = []string{"c2", "c1", "c3"}

	b := map[string]any{}
	b["end_client_id"] = []string{"c3", "c1", "c2"}
	b["status"] = "active"
	b["creator_id"] = "cr1"

	if Key("projects", a) != Key("projects", b) {
		t.Errorf("keys differ:\n%s\n%s", Key("projects", a), Key("projects", b))
	}

	// Reconstructing an equal map yields the same key every time.
	for i := 0; i < 20; i++ {
		c := map[string]any{"status": "active", "end_client_id": []string{"c1", "c2", "c3"}, "creator_id": "cr1"}
		if Key("projects", c) != Key("projects", a) {
			t.Fatal("key not stable across reconstruction")
		}
	}
}

func TestKeyDistinguishesFilters(t *testing.T) {
	keys := []string{
		Key("projects", nil),
		Key("projects", map[string]any{"id": "p1"}),
		Key("projects", map[string]any{"id": "p2"}),
		Key("projects", map[string]any{"id": 1}),
		Key("projects", map[string]any{"id": "1"}),
		Key("projects", map[string]any{"id": []string{"p1"}}),
		Key("projects", map[string]any{"id": "p1", "status": "active"}),
		Key("projects", map[string]any{"project_id": "p1"}),
		Key("projects", map[string]any{"id": nil}),
		Key("projects", map[string]any{"id": []int{1, 2}}),
		Key("projects", map[string]any{"id": []string{"1", "2"}}),
		Key("chatbots", map[string]any{"id": "p1"}),
	}
	seen := make(map[string]int)
	for i, k := range keys {
		if j, dup := seen[k]; dup {
			t.Errorf("key %d collides with key %d: %s", i, j, k)
		}
		seen[k] = i
	}
}

func TestKeyFormat(t *testing.T) {
	got := Key("projects", map[string]any{"end_client_id": []string{"c2", "c1"}, "status": "active"})
	want := `projects|[["end_client_id",["c1","c2"]],["status","active"]]`
	if got != want {
		t.Errorf("Key = %s, want %s", got, want)
	}

	if got := Key("creators", nil); got != "creators|[]" {
		t.Errorf("empty filters key = %s", got)
	}
	if !strings.HasPrefix(Key("leads", map[string]any{"x": 1}), ResourcePrefix("leads")) {
		t.Error("key does not start with resource prefix")
	}
}

func TestKeyMixedSliceTypes(t *testing.T) {
	a := Key("assets", map[string]any{"id": []any{"b", 2, "a"}})
	b := Key("assets", map[string]any{"id": []any{2, "a", "b"}})
	if a != b {
		t.Errorf("mixed inclusion list not canonical: %s vs %s", a, b)
	}
}
