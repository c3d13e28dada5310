// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package dashboard

import (
	"fmt"
	"slices"
	"time"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/config"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/models"
)

// Sub-resource names. They are also the Keyed Query Cache resource names.
const (
	ResourceCreator         = "creator"
	ResourceClients         = "clients"
	ResourceProjects        = "projects"
	ResourceChatbots        = "chatbots"
	ResourceAnalytics       = "analytics"
	ResourceRequests        = "requests"
	ResourceSupportRequests = "support_requests"
	ResourceLeads           = "leads"
	ResourceAssets          = "assets"
)

// Resources lists every sub-resource in load order.
var Resources = []string{
	ResourceCreator,
	ResourceClients,
	ResourceProjects,
	ResourceChatbots,
	ResourceAnalytics,
	ResourceRequests,
	ResourceSupportRequests,
	ResourceLeads,
	ResourceAssets,
}

var resourceTables = map[string]string{
	ResourceCreator:         models.TableCreators,
	ResourceClients:         models.TableEndClients,
	ResourceProjects:        models.TableProjects,
	ResourceChatbots:        models.TableChatbots,
	ResourceAnalytics:       models.TableAnalytics,
	ResourceRequests:        models.TableRequests,
	ResourceSupportRequests: models.TableSupportRequests,
	ResourceLeads:           models.TableLeads,
	ResourceAssets:          models.TableAssets,
}

// tableResources maps a changed table to the sub-resources it feeds.
// imported_analytics is not part of the composite but shares the analytics
// resource so analytics screens refresh with it.
var tableResources = map[string][]string{
	models.TableCreators:          {ResourceCreator},
	models.TableEndClients:        {ResourceClients},
	models.TableProjects:          {ResourceProjects},
	models.TableChatbots:          {ResourceChatbots},
	models.TableAnalytics:         {ResourceAnalytics},
	models.TableImportedAnalytics: {ResourceAnalytics},
	models.TableRequests:          {ResourceRequests},
	models.TableSupportRequests:   {ResourceSupportRequests},
	models.TableLeads:             {ResourceLeads},
	models.TableAssets:            {ResourceAssets},
}

// ValidResource reports whether name is a sub-resource.
func ValidResource(name string) bool {
	_, ok := resourceTables[name]
	return ok
}

// ResourcesForTables returns the sorted, unique sub-resources fed by tables.
func ResourcesForTables(tables []string) []string {
	var out []string
	for _, t := range tables {
		for _, r := range tableResources[t] {
			if !slices.Contains(out, r) {
				out = append(out, r)
			}
		}
	}
	slices.Sort(out)
	return out
}

// TTLs holds the Keyed Query Cache lifetime of each sub-resource.
type TTLs map[string]time.Duration

// TTLsFromConfig reads per-resource TTLs, falling back to DefaultTTL.
func TTLsFromConfig(cfg config.CacheConfig) TTLs {
	pick := func(d time.Duration) time.Duration {
		if d > 0 {
			return d
		}
		return cfg.DefaultTTL
	}
	return TTLs{
		ResourceCreator:         pick(cfg.CreatorTTL),
		ResourceClients:         pick(cfg.ClientsTTL),
		ResourceProjects:        pick(cfg.ProjectsTTL),
		ResourceChatbots:        pick(cfg.ChatbotsTTL),
		ResourceAnalytics:       pick(cfg.AnalyticsTTL),
		ResourceRequests:        pick(cfg.RequestsTTL),
		ResourceSupportRequests: pick(cfg.SupportRequestsTTL),
		ResourceLeads:           pick(cfg.LeadsTTL),
		ResourceAssets:          pick(cfg.AssetsTTL),
	}
}

// slice extracts one sub-resource from c as a copy.
func slice(c models.Composite, resource string) (any, error) {
	switch resource {
	case ResourceCreator:
		return c.Creator, nil
	case ResourceClients:
		return slices.Clone(c.Clients), nil
	case ResourceProjects:
		return slices.Clone(c.Projects), nil
	case ResourceChatbots:
		return slices.Clone(c.Chatbots), nil
	case ResourceAnalytics:
		return slices.Clone(c.Analytics), nil
	case ResourceRequests:
		return slices.Clone(c.Requests), nil
	case ResourceSupportRequests:
		return slices.Clone(c.SupportRequests), nil
	case ResourceLeads:
		return slices.Clone(c.Leads), nil
	case ResourceAssets:
		return slices.Clone(c.Assets), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownResource, resource)
}

// cloneValue copies a cached sub-resource value so callers never share a
// backing array with the cache.
func cloneValue(v any) any {
	switch s := v.(type) {
	case []models.EndClient:
		return slices.Clone(s)
	case []models.Project:
		return slices.Clone(s)
	case []models.Chatbot:
		return slices.Clone(s)
	case []models.AnalyticsEvent:
		return slices.Clone(s)
	case []models.Request:
		return slices.Clone(s)
	case []models.SupportRequest:
		return slices.Clone(s)
	case []models.Lead:
		return slices.Clone(s)
	case []models.Asset:
		return slices.Clone(s)
	}
	return v
}
