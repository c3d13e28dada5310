// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"sync"
	"time"
)

// DefaultDebounceWindow is the quiet period used when none is given.
const DefaultDebounceWindow = time.Second

// Timer is the part of *time.Timer the debouncer uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc is the production
// implementation; tests inject a manual one.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// DebounceState is the debouncer's lifecycle position.
type DebounceState int

const (
	// StateIdle has no pending timer.
	StateIdle DebounceState = iota
	// StatePending has a timer running; another trigger restarts it.
	StatePending
	// StateFired is running the callback.
	StateFired
)

func (s DebounceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateFired:
		return "fired"
	default:
		return "unknown"
	}
}

// Debouncer runs fire once after a quiet period of window following the
// last Trigger. Triggers arriving while fire runs schedule another run.
type Debouncer struct {
	mu        sync.Mutex
	window    time.Duration
	afterFunc AfterFunc
	fire      func()

	state   DebounceState
	timer   Timer
	seq     uint64
	stopped bool
}

// NewDebouncer returns an idle Debouncer. A nil afterFunc uses
// time.AfterFunc; a non-positive window uses DefaultDebounceWindow.
func NewDebouncer(window time.Duration, fire func(), afterFunc AfterFunc) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Debouncer{
		window:    window,
		afterFunc: afterFunc,
		fire:      fire,
	}
}

// Trigger (re)starts the quiet-period timer.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.state = StatePending
	d.timer = d.afterFunc(d.window, func() { d.expire(seq) })
}

// expire handles a timer firing. seq guards against a timer that was
// replaced but had already started running when Stop was called on it.
func (d *Debouncer) expire(seq uint64) {
	d.mu.Lock()
	if d.stopped || seq != d.seq || d.state != StatePending {
		d.mu.Unlock()
		return
	}
	d.state = StateFired
	d.timer = nil
	d.mu.Unlock()

	d.fire()

	d.mu.Lock()
	if d.state == StateFired {
		d.state = StateIdle
	}
	d.mu.Unlock()
}

// Stop cancels any pending run. Later triggers are ignored. A run already
// in progress completes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.state = StateIdle
}

// State returns the current lifecycle position.
func (d *Debouncer) State() DebounceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
