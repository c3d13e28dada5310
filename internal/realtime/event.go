// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Kind is the kind of row change.
type Kind string

const (
	KindInsert Kind = "insert"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// ParseKind accepts the store's upper-case change types as well as the
// lower-case Kind values.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindInsert, KindUpdate, KindDelete:
		return k, nil
	default:
		return "", fmt.Errorf("unknown change kind %q", s)
	}
}

// ChangeEvent is one row change on a watched table. Payload is the new row
// for inserts and updates and the old row for deletes; it may be empty when
// the store does not send row images.
type ChangeEvent struct {
	Table      string          `json:"table"`
	Kind       Kind            `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

var errMissingTable = errors.New("change event has no table")

// Validate checks that the event names a table and a known kind.
func (e ChangeEvent) Validate() error {
	if e.Table == "" {
		return errMissingTable
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	return nil
}

func marshalEvent(e ChangeEvent) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

func unmarshalEvent(data []byte) (ChangeEvent, error) {
	var e ChangeEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return ChangeEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return ChangeEvent{}, err
	}
	return e, nil
}
