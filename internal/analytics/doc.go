// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package analytics reconciles the two analytics tables into one metric
model and aggregates it.

Event rows (table analytics) are already one metric per row. Imported rows
(table imported_analytics) carry page views, visitors and average time in
columns and expand into up to three metrics. Both become CanonicalMetric
values through Normalize, and Aggregate turns the merged list into a
Summary. Sources are additive: a view counted in both tables is counted
twice, and imported metrics use synthesized source IDs that never collide
with event row IDs.

Reconciler.Compute fetches both tables for a Scope in parallel. If either
fails the computation fails with ErrSourceFailed. Reconciler.Watch keeps a
summary current by recomputing after bursts on the change stream.
*/
package analytics
