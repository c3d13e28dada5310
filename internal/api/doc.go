// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

/*
Package api serves the dashboard data layer over HTTP and WebSocket.

Every route under /api/v1 except the health probes needs a caller
identity. With a TokenVerifier configured it is the subject of the bearer
access token (or the access_token query parameter for websocket
upgrades); otherwise it is the X-User-ID header set by the gateway (or the
user_id query parameter). Responses use the
models.APIResponse envelope; errors carry a stable code.

Routes:

	GET    /api/v1/health                       breakers, clients, route timings
	GET    /api/v1/health/live                  liveness
	GET    /api/v1/health/ready                 503 while a breaker is open
	GET    /api/v1/dashboard                    composite for the caller
	GET    /api/v1/dashboard/{resource}         one slice of the composite
	POST   /api/v1/dashboard/refresh?force=     mark stale or bypass caches
	POST   /api/v1/dashboard/focus              refetch a stale watched composite
	POST   /api/v1/cache/invalidate/{resource}  drop a slice for every user
	GET    /api/v1/analytics/summary?scope=&id= reconciled totals
	GET    /api/v1/analytics/metrics?scope=&id= canonical metrics
	GET    /api/v1/prefs/view                   last dashboard view
	PUT    /api/v1/prefs/view
	GET    /api/v1/prefs/searches               recent searches
	POST   /api/v1/prefs/searches
	DELETE /api/v1/prefs/searches
	POST   /api/v1/projects                     provision client, project, chatbot
	POST   /api/v1/chatbots/{id}/answer         chatbot reply
	GET    /api/v1/ws                           push channel
	GET    /metrics                             Prometheus

Opening /api/v1/ws starts a dashboard watch for the caller, shared by all
of the caller's connections. Changes push "invalidate" frames, background
failures push "notification" frames, and with analytics_scope and
analytics_id set the reconciled summary is pushed as "analytics" frames.
A client sends {"type":"focus"} when its dashboard regains focus, with
the same effect as POST /api/v1/dashboard/focus.
*/
package api
