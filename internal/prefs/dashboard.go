// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package prefs

import (
	"strings"
	"time"
)

// DefaultRecentSearchLimit is the recent-search capacity.
const DefaultRecentSearchLimit = 10

// ViewState is the last dashboard layout a user looked at.
type ViewState struct {
	View      string            `json:"view"`
	Tab       string            `json:"tab,omitempty"`
	ProjectID string            `json:"project_id,omitempty"`
	ClientID  string            `json:"client_id,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// DefaultViewState is returned when a user has no stored view.
func DefaultViewState() ViewState {
	return ViewState{View: "overview", Tab: "projects"}
}

func viewStateKey(userID string) string     { return "view:" + userID }
func recentSearchesKey(userID string) string { return "recent_searches:" + userID }

// ViewState returns the stored view for userID or the default.
func (c *Cache) ViewState(userID string) ViewState {
	return Read(c, viewStateKey(userID), DefaultViewState())
}

// SaveViewState persists vs for userID.
func (c *Cache) SaveViewState(userID string, vs ViewState) {
	vs.UpdatedAt = c.now().UTC()
	c.Write(viewStateKey(userID), vs)
}

// RecentSearches returns the user's searches, most recent first.
func (c *Cache) RecentSearches(userID string) []string {
	return Read(c, recentSearchesKey(userID), []string{})
}

// AddRecentSearch records query as the most recent search and returns the
// updated list. Blank queries are ignored; repeats (case-insensitive) move
// to the front instead of duplicating. The list is capped at the configured
// limit.
func (c *Cache) AddRecentSearch(userID, query string) []string {
	query = strings.TrimSpace(query)
	current := c.RecentSearches(userID)
	if query == "" {
		return current
	}

	limit := c.recentLimit
	if limit <= 0 {
		limit = DefaultRecentSearchLimit
	}
	next := make([]string, 0, limit)
	next = append(next, query)
	for _, q := range current {
		if len(next) == limit {
			break
		}
		if strings.EqualFold(q, query) {
			continue
		}
		next = append(next, q)
	}
	c.Write(recentSearchesKey(userID), next)
	return next
}

// ClearRecentSearches removes the user's search history.
func (c *Cache) ClearRecentSearches(userID string) {
	c.Remove(recentSearchesKey(userID))
}
