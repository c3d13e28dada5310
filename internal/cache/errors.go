// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package cache

import (
	"errors"
	"fmt"
)

// ErrTypeMismatch is returned when a shared fetch produced a value of a
// different type than the caller asked for.
var ErrTypeMismatch = errors.New("cache: value type mismatch")

func errTypeMismatch(key string, got any) error {
	return fmt.Errorf("%w: key %s holds %T", ErrTypeMismatch, key, got)
}
