// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package models

import (
	"slices"
	"time"
)

// Composite is the flattened dashboard tree for one creator:
// creator -> clients -> projects -> {chatbots, analytics, requests},
// plus the creator-level leads, support requests and assets.
type Composite struct {
	Creator         Creator          `json:"creator"`
	Clients         []EndClient      `json:"clients"`
	Projects        []Project        `json:"projects"`
	Chatbots        []Chatbot        `json:"chatbots"`
	Analytics       []AnalyticsEvent `json:"analytics"`
	Requests        []Request        `json:"requests"`
	SupportRequests []SupportRequest `json:"support_requests"`
	Leads           []Lead           `json:"leads"`
	Assets          []Asset          `json:"assets"`
	LoadedAt        time.Time        `json:"loaded_at"`
}

// Clone returns a copy whose slices share no backing arrays with c.
// Elements are plain values, so a shallow slice copy is a deep copy.
func (c Composite) Clone() Composite {
	out := c
	out.Clients = slices.Clone(c.Clients)
	out.Projects = slices.Clone(c.Projects)
	out.Chatbots = slices.Clone(c.Chatbots)
	out.Analytics = slices.Clone(c.Analytics)
	out.Requests = slices.Clone(c.Requests)
	out.SupportRequests = slices.Clone(c.SupportRequests)
	out.Leads = slices.Clone(c.Leads)
	out.Assets = slices.Clone(c.Assets)
	return out
}

// ProjectIDs returns the IDs of every project in the composite.
func (c Composite) ProjectIDs() []string {
	ids := make([]string, len(c.Projects))
	for i, p := range c.Projects {
		ids[i] = p.ID
	}
	return ids
}

// Counts summarizes the composite size for headers and logs.
type Counts struct {
	Clients         int `json:"clients"`
	Projects        int `json:"projects"`
	Chatbots        int `json:"chatbots"`
	Analytics       int `json:"analytics"`
	Requests        int `json:"requests"`
	SupportRequests int `json:"support_requests"`
	Leads           int `json:"leads"`
	Assets          int `json:"assets"`
}

// Counts returns the number of rows in each slice.
func (c Composite) Counts() Counts {
	return Counts{
		Clients:         len(c.Clients),
		Projects:        len(c.Projects),
		Chatbots:        len(c.Chatbots),
		Analytics:       len(c.Analytics),
		Requests:        len(c.Requests),
		SupportRequests: len(c.SupportRequests),
		Leads:           len(c.Leads),
		Assets:          len(c.Assets),
	}
}
