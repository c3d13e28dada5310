// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package fetch

import (
	"strings"

	"github.com/goccy/go-json"
)

// Key identifies a managed record. Invalidation matches keys segment by
// segment, so Key{"dashboard"} matches Key{"dashboard", "u1"} but not
// Key{"dashboards"}.
type Key []string

// HasPrefix reports whether prefix matches the leading segments of k.
// The empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, seg := range prefix {
		if k[i] != seg {
			return false
		}
	}
	return true
}

// Root returns the first segment, used as a low-cardinality metric label.
func (k Key) Root() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// String renders the key as a JSON array, which is injective over segment
// lists (segments may contain any character).
func (k Key) String() string {
	if len(k) == 0 {
		return "[]"
	}
	data, err := json.Marshal([]string(k))
	if err != nil {
		return "[" + strings.Join(k, ",") + "]"
	}
	return string(data)
}
