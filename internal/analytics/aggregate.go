// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package analytics

import (
	"cmp"
	"math"
	"slices"
	"time"
)

// Summary is the aggregate view of a scope's metrics.
type Summary struct {
	TotalViews        float64 `json:"total_views"`
	TotalVisitors     float64 `json:"total_visitors"`
	AvgEngagementTime float64 `json:"avg_engagement_time"`
	TotalLeads        float64 `json:"total_leads"`
	// ConversionRate is leads per hundred views, rounded to 2 decimals,
	// and 0 when there are no views.
	ConversionRate  float64 `json:"conversion_rate"`
	AvgSatisfaction float64 `json:"avg_satisfaction"`
	// LastActivity is the newest created_at, nil for an empty set.
	LastActivity *time.Time `json:"last_activity"`

	MetricCount int          `json:"metric_count"`
	Daily       []DailyPoint `json:"daily"`
}

// DailyPoint is one day of the views/visitors/leads series.
type DailyPoint struct {
	Date     string  `json:"date"`
	Views    float64 `json:"views"`
	Visitors float64 `json:"visitors"`
	Leads    float64 `json:"leads"`
}

// Aggregate computes the summary of metrics. The result does not depend on
// the order of metrics: they are sorted by SourceID before summing so even
// floating-point rounding is reproducible.
func Aggregate(metrics []CanonicalMetric) Summary {
	sorted := slices.Clone(metrics)
	slices.SortFunc(sorted, compareMetrics)

	var (
		s                   Summary
		timeSum, satSum     float64
		timeCount, satCount int
		last                time.Time
	)
	daily := map[string]*DailyPoint{}
	s.MetricCount = len(sorted)

	for _, m := range sorted {
		switch m.MetricType {
		case MetricView:
			s.TotalViews += m.Value
		case MetricUniqueVisitor:
			s.TotalVisitors += m.Value
		case MetricTimeSpent:
			timeSum += m.Value
			timeCount++
		case MetricLeadGenerated:
			s.TotalLeads += m.Value
		case MetricSatisfaction:
			satSum += m.Value
			satCount++
		}
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
		if m.Date != "" {
			addDaily(daily, m)
		}
	}

	if timeCount > 0 {
		s.AvgEngagementTime = timeSum / float64(timeCount)
	}
	if satCount > 0 {
		s.AvgSatisfaction = round2(satSum / float64(satCount))
	}
	if s.TotalViews > 0 {
		s.ConversionRate = round2(s.TotalLeads / s.TotalViews * 100)
	}
	if !last.IsZero() {
		s.LastActivity = &last
	}

	s.Daily = make([]DailyPoint, 0, len(daily))
	for _, p := range daily {
		s.Daily = append(s.Daily, *p)
	}
	slices.SortFunc(s.Daily, func(a, b DailyPoint) int { return cmp.Compare(a.Date, b.Date) })
	return s
}

func addDaily(daily map[string]*DailyPoint, m CanonicalMetric) {
	day := m.Date
	if len(day) > len(time.DateOnly) {
		day = day[:len(time.DateOnly)]
	}
	p, ok := daily[day]
	if !ok {
		p = &DailyPoint{Date: day}
		daily[day] = p
	}
	switch m.MetricType {
	case MetricView:
		p.Views += m.Value
	case MetricUniqueVisitor:
		p.Visitors += m.Value
	case MetricLeadGenerated:
		p.Leads += m.Value
	}
}

func compareMetrics(a, b CanonicalMetric) int {
	return cmp.Or(
		cmp.Compare(a.SourceID, b.SourceID),
		cmp.Compare(a.MetricType, b.MetricType),
		cmp.Compare(a.Value, b.Value),
		a.CreatedAt.Compare(b.CreatedAt),
	)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
