// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package auth verifies the access tokens dashboard users obtain from the
// hosted store's auth service. Tokens are HS256 JWTs whose subject is the
// user ID; this service never issues tokens itself.
package auth
