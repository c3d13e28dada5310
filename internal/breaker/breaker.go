// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

// Package breaker wraps sony/gobreaker with the process's logging and
// Prometheus circuit breaker metrics.
package breaker

import (
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/logging"
	"github.com/tourcompanion360/tourcompanion-dashboard-sub001/internal/metrics"
)

// ErrOpen is returned when a call is rejected because the circuit is open
// or the half-open probe quota is used up.
var ErrOpen = errors.New("circuit breaker open")

// Settings configure a Breaker.
type Settings struct {
	Name string
	// MinRequests is the number of calls in the window before the failure
	// ratio is considered.
	MinRequests uint32
	// FailureRatio opens the circuit when reached.
	FailureRatio float64
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// IsFailure decides which errors count against the circuit. Nil counts
	// every error.
	IsFailure func(err error) bool
}

// Breaker guards calls returning T.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// New creates a Breaker. Zero settings default to 10 requests, a 0.6
// failure ratio and a 30 second open period.
func New[T any](s Settings) *Breaker[T] {
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = 0.6
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}

	metrics.CircuitBreakerState.WithLabelValues(s.Name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(s.Name).Set(0)

	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().Str("breaker", s.Name).Uint32("failures", counts.TotalFailures).Float64("failure_rate", ratio*100).Msg("opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", StateString(from)).Str("to", StateString(to)).Msg("circuit state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, StateString(from), StateString(to)).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	}
	if s.IsFailure != nil {
		isFailure := s.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &Breaker[T]{
		cb:   gobreaker.NewCircuitBreaker[T](settings),
		name: s.Name,
	}
}

// Execute runs fn through the circuit. Rejections wrap ErrOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			var zero T
			return zero, errors.Join(ErrOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
		return result, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

// State returns the circuit state as "closed", "half-open" or "open".
func (b *Breaker[T]) State() string {
	return StateString(b.cb.State())
}

// Name returns the breaker's name.
func (b *Breaker[T]) Name() string {
	return b.name
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// StateString names a gobreaker state.
func StateString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
