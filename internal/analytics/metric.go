// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package analytics

import (
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
)

// MetricType names what a canonical metric measures.
type MetricType string

const (
	MetricView               MetricType = "view"
	MetricUniqueVisitor      MetricType = "unique_visitor"
	MetricTimeSpent          MetricType = "time_spent"
	MetricLeadGenerated      MetricType = "lead_generated"
	MetricSatisfaction       MetricType = "satisfaction"
	MetricChatbotInteraction MetricType = "chatbot_interaction"
	MetricQRScan             MetricType = "qr_scan"
)

// CanonicalMetric is one analytics fact regardless of the table it came
// from. SourceID is unique across both tables: event rows keep their row
// id and imported rows get "{rowID}_{views|visitors|time}".
type CanonicalMetric struct {
	ScopeID    string     `json:"scope_id"`
	ProjectID  string     `json:"project_id"`
	MetricType MetricType `json:"metric_type"`
	Value      float64    `json:"value"`
	Date       string     `json:"date"`
	CreatedAt  time.Time  `json:"created_at"`
	SourceID   string     `json:"source_id"`
}

// RawMetric is a row from one of the two analytics tables. The set of
// implementations is closed: EventMetric and ImportedMetric.
type RawMetric interface {
	rawMetric()
}

// EventMetric is a row of the event-level analytics table, already in
// canonical shape.
type EventMetric models.AnalyticsEvent

// ImportedMetric is a row of the spreadsheet-imported analytics table.
type ImportedMetric models.ImportedAnalytics

func (EventMetric) rawMetric()    {}
func (ImportedMetric) rawMetric() {}

// importedField maps an imported column onto the metric it expands to.
type importedField struct {
	value  func(ImportedMetric) *float64
	metric MetricType
	suffix string
}

var importedFields = []importedField{
	{func(m ImportedMetric) *float64 { return m.PageViews }, MetricView, "views"},
	{func(m ImportedMetric) *float64 { return m.Visitors }, MetricUniqueVisitor, "visitors"},
	{func(m ImportedMetric) *float64 { return m.AvgTime }, MetricTimeSpent, "time"},
}

// Normalize converts a raw row into canonical metrics. Imported rows
// expand into up to three metrics; absent and zero-valued columns produce
// nothing, so an avg_time of 0 does not drag the engagement mean down.
// ScopeID is left empty; NormalizeAll fills it.
func Normalize(raw RawMetric) []CanonicalMetric {
	switch m := raw.(type) {
	case EventMetric:
		return []CanonicalMetric{{
			ProjectID:  m.ProjectID,
			MetricType: MetricType(m.MetricType),
			Value:      m.MetricValue,
			Date:       m.Date,
			CreatedAt:  m.CreatedAt,
			SourceID:   m.ID,
		}}
	case ImportedMetric:
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = dateToTime(m.Date)
		}
		base := m.ID
		if base == "" {
			// Imported rows are one per project and day.
			base = "imported:" + m.ProjectID + ":" + m.Date
		}
		out := make([]CanonicalMetric, 0, len(importedFields))
		for _, f := range importedFields {
			v := f.value(m)
			if v == nil || *v == 0 {
				continue
			}
			out = append(out, CanonicalMetric{
				ProjectID:  m.ProjectID,
				MetricType: f.metric,
				Value:      *v,
				Date:       m.Date,
				CreatedAt:  createdAt,
				SourceID:   base + "_" + f.suffix,
			})
		}
		return out
	default:
		return nil
	}
}

// NormalizeAll normalizes rows from both tables and tags them with scope.
func NormalizeAll(scope Scope, raws []RawMetric) []CanonicalMetric {
	out := make([]CanonicalMetric, 0, len(raws))
	for _, raw := range raws {
		for _, m := range Normalize(raw) {
			m.ScopeID = scope.ID
			out = append(out, m)
		}
	}
	return out
}

// dateToTime reads a YYYY-MM-DD date as midnight UTC. Unparsable dates give
// the zero time, which never wins LastActivity.
func dateToTime(date string) time.Time {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}
	}
	return t
}
