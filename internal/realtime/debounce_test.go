// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// manualTimers is an AfterFunc whose timers only fire when told to.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

// fireActive runs every timer that is neither stopped nor fired and
// returns how many ran.
func (m *manualTimers) fireActive() int {
	m.mu.Lock()
	timers := append([]*manualTimer(nil), m.timers...)
	m.mu.Unlock()

	n := 0
	for _, t := range timers {
		t.mu.Lock()
		run := !t.stopped && !t.fired
		t.fired = true
		t.mu.Unlock()
		if run {
			t.f()
			n++
		}
	}
	return n
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

func TestDebouncerCoalescesTriggers(t *testing.T) {
	timers := &manualTimers{}
	var fired atomic.Int32
	d := NewDebouncer(time.Second, func() { fired.Add(1) }, timers.AfterFunc)

	if d.State() != StateIdle {
		t.Fatalf("initial state = %v", d.State())
	}
	for i := 0; i < 5; i++ {
		d.Trigger()
	}
	if d.State() != StatePending {
		t.Fatalf("state after trigger = %v", d.State())
	}
	if timers.count() != 5 {
		t.Errorf("timers created = %d, want one per trigger", timers.count())
	}

	if n := timers.fireActive(); n != 1 {
		t.Errorf("active timers = %d, want 1 (earlier ones reset)", n)
	}
	if fired.Load() != 1 {
		t.Errorf("fired = %d, want 1", fired.Load())
	}
	if d.State() != StateIdle {
		t.Errorf("state after fire = %v", d.State())
	}
}

func TestDebouncerSeparateBursts(t *testing.T) {
	timers := &manualTimers{}
	var fired atomic.Int32
	d := NewDebouncer(time.Second, func() { fired.Add(1) }, timers.AfterFunc)

	d.Trigger()
	timers.fireActive()
	d.Trigger()
	d.Trigger()
	timers.fireActive()

	if fired.Load() != 2 {
		t.Errorf("fired = %d, want 2", fired.Load())
	}
}

func TestDebouncerStop(t *testing.T) {
	timers := &manualTimers{}
	var fired atomic.Int32
	d := NewDebouncer(time.Second, func() { fired.Add(1) }, timers.AfterFunc)

	d.Trigger()
	d.Stop()
	d.Trigger()
	timers.fireActive()

	if fired.Load() != 0 {
		t.Errorf("fired = %d after Stop", fired.Load())
	}
	if d.State() != StateIdle {
		t.Errorf("state = %v", d.State())
	}
}

func TestDebouncerReplacedTimerIgnored(t *testing.T) {
	timers := &manualTimers{}
	var fired atomic.Int32
	d := NewDebouncer(time.Second, func() { fired.Add(1) }, timers.AfterFunc)

	d.Trigger()
	first := timers.timers[0]
	d.Trigger()

	// A replaced timer that was already running when stopped must not fire.
	first.f()
	if fired.Load() != 0 {
		t.Errorf("replaced timer fired the callback")
	}
	timers.fireActive()
	if fired.Load() != 1 {
		t.Errorf("fired = %d, want 1", fired.Load())
	}
}

func TestDebouncerTriggerDuringFire(t *testing.T) {
	timers := &manualTimers{}
	var d *Debouncer
	var fired atomic.Int32
	d = NewDebouncer(time.Second, func() {
		if fired.Add(1) == 1 {
			if d.State() != StateFired {
				t.Errorf("state during fire = %v", d.State())
			}
			d.Trigger()
		}
	}, timers.AfterFunc)

	d.Trigger()
	timers.fireActive()
	if d.State() != StatePending {
		t.Fatalf("trigger during fire should leave the debouncer pending, got %v", d.State())
	}
	timers.fireActive()
	if fired.Load() != 2 {
		t.Errorf("fired = %d, want 2", fired.Load())
	}
}

func TestDebouncerDefaults(t *testing.T) {
	var fired atomic.Int32
	d := NewDebouncer(0, func() { fired.Add(1) }, nil)
	if d.window != DefaultDebounceWindow {
		t.Errorf("window = %v", d.window)
	}

	d = NewDebouncer(5*time.Millisecond, func() { fired.Add(1) }, nil)
	d.Trigger()
	d.Trigger()
	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("fired = %d, want 1", fired.Load())
	}
}

func TestDebounceStateString(t *testing.T) {
	for state, want := range map[DebounceState]string{
		StateIdle:         "idle",
		StatePending:      "pending",
		StateFired:        "fired",
		DebounceState(42): "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
