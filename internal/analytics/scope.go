// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package analytics

import (
	"errors"
	"fmt"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/remote"
)

// ScopeKind is the dimension analytics are aggregated over.
type ScopeKind string

const (
	ScopeProject ScopeKind = "project"
	ScopeClient  ScopeKind = "client"
	ScopeCreator ScopeKind = "creator"
)

// ErrInvalidScope is returned for a scope without a known kind or an ID.
var ErrInvalidScope = errors.New("invalid analytics scope")

// Scope selects rows by exactly one of project, end client or creator.
// The kinds are alternatives, never combined.
type Scope struct {
	Kind ScopeKind `json:"kind" validate:"required,oneof=project client creator"`
	ID   string    `json:"id" validate:"required"`
}

// ProjectScope aggregates one project.
func ProjectScope(id string) Scope { return Scope{Kind: ScopeProject, ID: id} }

// ClientScope aggregates every project of one end client.
func ClientScope(id string) Scope { return Scope{Kind: ScopeClient, ID: id} }

// CreatorScope aggregates every project of one creator.
func CreatorScope(id string) Scope { return Scope{Kind: ScopeCreator, ID: id} }

// ParseScope builds a scope from its kind name.
func ParseScope(kind, id string) (Scope, error) {
	s := Scope{Kind: ScopeKind(kind), ID: id}
	return s, s.Validate()
}

// Validate checks the kind and ID.
func (s Scope) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidScope)
	}
	if s.Column() == "" {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidScope, s.Kind)
	}
	return nil
}

// Column is the row column the scope filters on. Both analytics tables
// carry all three columns.
func (s Scope) Column() string {
	switch s.Kind {
	case ScopeProject:
		return "project_id"
	case ScopeClient:
		return "end_client_id"
	case ScopeCreator:
		return "creator_id"
	default:
		return ""
	}
}

// Filter returns the single-predicate filter for the scope.
func (s Scope) Filter() remote.Filter {
	return remote.Where(s.Column(), s.ID)
}

func (s Scope) String() string {
	return string(s.Kind) + ":" + s.ID
}
