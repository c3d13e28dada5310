// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package models

import "time"

// Remote table names.
const (
	TableCreators          = "creators"
	TableEndClients        = "end_clients"
	TableProjects          = "projects"
	TableChatbots          = "chatbots"
	TableAnalytics         = "analytics"
	TableImportedAnalytics = "imported_analytics"
	TableRequests          = "requests"
	TableSupportRequests   = "support_requests"
	TableLeads             = "leads"
	TableAssets            = "assets"
)

// DashboardTables lists every table a dashboard composite is built from.
var DashboardTables = []string{
	TableCreators,
	TableEndClients,
	TableProjects,
	TableChatbots,
	TableAnalytics,
	TableImportedAnalytics,
	TableRequests,
	TableSupportRequests,
	TableLeads,
	TableAssets,
}

// Creator is an agency account. Exactly one creator row exists per user.
type Creator struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	AgencyName       string    `json:"agency_name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone,omitempty"`
	AgencyLogo       string    `json:"agency_logo,omitempty"`
	SubscriptionPlan string    `json:"subscription_plan,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// EndClient is a customer of a creator.
type EndClient struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creator_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a virtual tour owned by an end client.
type Project struct {
	ID           string    `json:"id"`
	EndClientID  string    `json:"end_client_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	ProjectType  string    `json:"project_type,omitempty"`
	Status       string    `json:"status"`
	TourURL      string    `json:"tour_url,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// Chatbot answers visitor questions for one project.
type Chatbot struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Name           string    `json:"name"`
	WelcomeMessage string    `json:"welcome_message,omitempty"`
	Language       string    `json:"language,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// AnalyticsEvent is one event-level metric row (table analytics).
type AnalyticsEvent struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	EndClientID string    `json:"end_client_id,omitempty"`
	CreatorID   string    `json:"creator_id,omitempty"`
	MetricType  string    `json:"metric_type"`
	MetricValue float64   `json:"metric_value"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
}

// ImportedAnalytics is one bulk-imported spreadsheet row
// (table imported_analytics). Numeric columns are nullable.
type ImportedAnalytics struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	EndClientID string    `json:"end_client_id,omitempty"`
	CreatorID   string    `json:"creator_id,omitempty"`
	PageViews   *float64  `json:"page_views"`
	Visitors    *float64  `json:"visitors"`
	AvgTime     *float64  `json:"avg_time"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Request is a change request filed by an end client on a project.
type Request struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	EndClientID string    `json:"end_client_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	RequestType string    `json:"request_type,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SupportRequest is a ticket a creator opened with the platform.
type SupportRequest struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creator_id"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Lead is a contact captured by a project's chatbot.
type Lead struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	ChatbotID     string    `json:"chatbot_id,omitempty"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	QuestionAsked string    `json:"question_asked,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Asset is an uploaded file owned by a creator.
type Asset struct {
	ID        string    `json:"id"`
	CreatorID string    `json:"creator_id"`
	ProjectID string    `json:"project_id,omitempty"`
	FileName  string    `json:"file_name"`
	FileURL   string    `json:"file_url"`
	FileType  string    `json:"file_type,omitempty"`
	FileSize  int64     `json:"file_size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
