// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package models defines the row shapes read from the hosted store and the
composite structures assembled from them.

Model Categories:

1. Remote rows (one struct per table):
  - Creator (creators), EndClient (end_clients), Project (projects)
  - Chatbot (chatbots), AnalyticsEvent (analytics)
  - ImportedAnalytics (imported_analytics)
  - Request (requests), SupportRequest (support_requests)
  - Lead (leads), Asset (assets)

2. Composites:
  - Composite: the flattened dashboard tree owned by the dashboard facade

3. API wrappers:
  - APIResponse, APIError, Metadata

JSON tags match the remote column names so rows decode directly from the
REST API and from remote.Decode.
*/
package models
