// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package analytics

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func ptr(v float64) *float64 { return &v }

func TestNormalizeImportedSkipsZeroAndAbsent(t *testing.T) {
	row := ImportedMetric{
		ID:        "imp1",
		ProjectID: "p1",
		PageViews: ptr(120),
		Visitors:  ptr(80),
		AvgTime:   ptr(0),
		Date:      "2025-01-10",
	}
	got := Normalize(row)
	want := []CanonicalMetric{
		{ProjectID: "p1", MetricType: MetricView, Value: 120, Date: "2025-01-10", CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), SourceID: "imp1_views"},
		{ProjectID: "p1", MetricType: MetricUniqueVisitor, Value: 80, Date: "2025-01-10", CreatedAt: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), SourceID: "imp1_visitors"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}

	if got := Normalize(ImportedMetric{ID: "imp2", AvgTime: ptr(45)}); len(got) != 1 || got[0].SourceID != "imp2_time" {
		t.Errorf("absent columns should be skipped: %+v", got)
	}
}

func TestNormalizeImportedWithoutID(t *testing.T) {
	a := Normalize(ImportedMetric{ProjectID: "p1", Date: "2025-01-10", PageViews: ptr(5), Visitors: ptr(2)})
	b := Normalize(ImportedMetric{ProjectID: "p2", Date: "2025-01-10", PageViews: ptr(7)})

	var got []string
	for _, m := range append(a, b...) {
		got = append(got, m.SourceID)
	}
	want := []string{
		"imported:p1:2025-01-10_views",
		"imported:p1:2025-01-10_visitors",
		"imported:p2:2025-01-10_views",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SourceIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeEvent(t *testing.T) {
	created := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	got := Normalize(EventMetric{ID: "ev1", ProjectID: "p1", MetricType: "lead_generated", MetricValue: 1, Date: "2025-02-01", CreatedAt: created})
	want := []CanonicalMetric{{ProjectID: "p1", MetricType: MetricLeadGenerated, Value: 1, Date: "2025-02-01", CreatedAt: created, SourceID: "ev1"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeAllSetsScope(t *testing.T) {
	got := NormalizeAll(ClientScope("c1"), []RawMetric{
		EventMetric{ID: "e1", MetricType: "view", MetricValue: 3},
		ImportedMetric{ID: "i1", PageViews: ptr(4)},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	for _, m := range got {
		if m.ScopeID != "c1" {
			t.Errorf("ScopeID = %q", m.ScopeID)
		}
	}
}

func TestAggregateSourcesAreAdditive(t *testing.T) {
	ms := NormalizeAll(ProjectScope("p1"), []RawMetric{
		EventMetric{ID: "e1", ProjectID: "p1", MetricType: "view", MetricValue: 50},
		ImportedMetric{ID: "i1", ProjectID: "p1", PageViews: ptr(120)},
	})
	if got := Aggregate(ms).TotalViews; got != 170 {
		t.Errorf("TotalViews = %v, want 170", got)
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	if s.ConversionRate != 0 || s.AvgEngagementTime != 0 || s.AvgSatisfaction != 0 {
		t.Errorf("empty summary has non-zero rates: %+v", s)
	}
	if s.LastActivity != nil {
		t.Errorf("LastActivity = %v, want nil", s.LastActivity)
	}
	if s.Daily == nil || len(s.Daily) != 0 {
		t.Errorf("Daily = %#v, want empty slice", s.Daily)
	}
}

func TestAggregateConversionWithoutViews(t *testing.T) {
	s := Aggregate([]CanonicalMetric{{SourceID: "l1", MetricType: MetricLeadGenerated, Value: 4}})
	if s.ConversionRate != 0 {
		t.Errorf("ConversionRate = %v, want 0", s.ConversionRate)
	}
	if s.TotalLeads != 4 {
		t.Errorf("TotalLeads = %v", s.TotalLeads)
	}
}

func TestAggregateStatistics(t *testing.T) {
	t1 := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 1, 12, 18, 30, 0, 0, time.UTC)
	ms := []CanonicalMetric{
		{SourceID: "a", MetricType: MetricView, Value: 300, Date: "2025-01-10", CreatedAt: t1},
		{SourceID: "b", MetricType: MetricUniqueVisitor, Value: 120, Date: "2025-01-10", CreatedAt: t1},
		{SourceID: "c", MetricType: MetricTimeSpent, Value: 40, Date: "2025-01-10", CreatedAt: t1},
		{SourceID: "d", MetricType: MetricTimeSpent, Value: 65, Date: "2025-01-12", CreatedAt: t2},
		{SourceID: "e", MetricType: MetricLeadGenerated, Value: 7, Date: "2025-01-12", CreatedAt: t1},
		{SourceID: "f", MetricType: MetricSatisfaction, Value: 4, Date: "2025-01-12", CreatedAt: t1},
		{SourceID: "g", MetricType: MetricSatisfaction, Value: 5, Date: "2025-01-12", CreatedAt: t1},
		{SourceID: "h", MetricType: MetricSatisfaction, Value: 5, Date: "2025-01-12", CreatedAt: t1},
		{SourceID: "i", MetricType: MetricQRScan, Value: 9, Date: "2025-01-11T08:00:00Z", CreatedAt: t1},
	}
	s := Aggregate(ms)

	if s.TotalViews != 300 || s.TotalVisitors != 120 || s.TotalLeads != 7 {
		t.Errorf("totals = %v/%v/%v", s.TotalViews, s.TotalVisitors, s.TotalLeads)
	}
	if s.AvgEngagementTime != 52.5 {
		t.Errorf("AvgEngagementTime = %v, want 52.5", s.AvgEngagementTime)
	}
	if s.ConversionRate != 2.33 {
		t.Errorf("ConversionRate = %v, want 2.33", s.ConversionRate)
	}
	if s.AvgSatisfaction != 4.67 {
		t.Errorf("AvgSatisfaction = %v, want 4.67", s.AvgSatisfaction)
	}
	if s.LastActivity == nil || !s.LastActivity.Equal(t2) {
		t.Errorf("LastActivity = %v, want %v", s.LastActivity, t2)
	}
	if s.MetricCount != 9 {
		t.Errorf("MetricCount = %d", s.MetricCount)
	}

	wantDaily := []DailyPoint{
		{Date: "2025-01-10", Views: 300, Visitors: 120},
		{Date: "2025-01-11"},
		{Date: "2025-01-12", Leads: 7},
	}
	if diff := cmp.Diff(wantDaily, s.Daily); diff != "" {
		t.Errorf("Daily mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	events := []RawMetric{
		EventMetric{ID: "e1", MetricType: "view", MetricValue: 0.1, Date: "2025-01-01"},
		EventMetric{ID: "e2", MetricType: "view", MetricValue: 0.2, Date: "2025-01-02"},
		EventMetric{ID: "e3", MetricType: "time_spent", MetricValue: 13.7, Date: "2025-01-02"},
		EventMetric{ID: "e4", MetricType: "lead_generated", MetricValue: 1, Date: "2025-01-03"},
		EventMetric{ID: "e5", MetricType: "satisfaction", MetricValue: 3.3, Date: "2025-01-03"},
	}
	imported := []RawMetric{
		ImportedMetric{ID: "i1", PageViews: ptr(0.3), Visitors: ptr(7), AvgTime: ptr(21.1), Date: "2025-01-02"},
		ImportedMetric{ID: "i2", PageViews: ptr(1e-9), Date: "2025-01-04"},
	}
	scope := ProjectScope("p1")

	forward := Aggregate(NormalizeAll(scope, slices.Concat(events, imported)))
	backward := Aggregate(NormalizeAll(scope, slices.Concat(imported, events)))
	if diff := cmp.Diff(forward, backward); diff != "" {
		t.Fatalf("merge order changed the summary (-events first +imported first):\n%s", diff)
	}

	shuffled := NormalizeAll(scope, slices.Concat(events, imported))
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if diff := cmp.Diff(forward, Aggregate(shuffled)); diff != "" {
			t.Fatalf("shuffle %d changed the summary:\n%s", i, diff)
		}
	}
}

func TestScope(t *testing.T) {
	tests := []struct {
		scope   Scope
		column  string
		wantErr bool
	}{
		{ProjectScope("p1"), "project_id", false},
		{ClientScope("c1"), "end_client_id", false},
		{CreatorScope("cr1"), "creator_id", false},
		{Scope{Kind: "team", ID: "x"}, "", true},
		{ProjectScope(""), "project_id", true},
	}
	for _, tt := range tests {
		if got := tt.scope.Column(); got != tt.column {
			t.Errorf("%v Column = %q, want %q", tt.scope, got, tt.column)
		}
		if err := tt.scope.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%v Validate = %v", tt.scope, err)
		}
	}
	if _, err := ParseScope("client", "c9"); err != nil {
		t.Errorf("ParseScope: %v", err)
	}
	if got := ClientScope("c1").Filter().Values().Get("end_client_id"); got != "eq.c1" {
		t.Errorf("Filter = %q", got)
	}
}
