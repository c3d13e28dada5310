// TourCompanion - Virtual Tour Dashboard Data Layer
// Copyright 2026 TourCompanion360
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourcompanion360/tourcompanion-dashboard

package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type burstRecorder struct {
	mu     sync.Mutex
	bursts []Burst
}

func (r *burstRecorder) record(b Burst) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bursts = append(r.bursts, b)
}

func (r *burstRecorder) all() []Burst {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Burst(nil), r.bursts...)
}

// waitTriggers waits until n debouncer timers exist. The listener buffers
// an event before triggering, so n timers means n events are buffered.
func waitTriggers(t *testing.T, timers *manualTimers, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for timers.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("debouncer triggered %d times, want %d", timers.count(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func publishAll(t *testing.T, s *Stream, events ...ChangeEvent) {
	t.Helper()
	for _, e := range events {
		if err := s.Publish(context.Background(), e); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
}

func TestListenerCoalescesBurst(t *testing.T) {
	stream := NewMemoryStream()
	defer stream.Close()
	timers := &manualTimers{}
	rec := &burstRecorder{}

	l, err := Listen(stream, []string{"projects", "leads", "analytics"}, time.Second, rec.record, WithAfterFunc(timers.AfterFunc))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	publishAll(t, stream,
		ChangeEvent{Table: "projects", Kind: KindUpdate},
		ChangeEvent{Table: "leads", Kind: KindInsert},
		ChangeEvent{Table: "projects", Kind: KindDelete},
	)
	waitTriggers(t, timers, 3)
	if len(rec.all()) != 0 {
		t.Fatal("burst delivered before the quiet period ended")
	}

	timers.fireActive()

	bursts := rec.all()
	if len(bursts) != 1 {
		t.Fatalf("bursts = %d, want 1", len(bursts))
	}
	if diff := cmp.Diff([]string{"leads", "projects"}, bursts[0].Tables); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}
	if len(bursts[0].Events) != 3 {
		t.Errorf("events = %d, want 3", len(bursts[0].Events))
	}
	if !bursts[0].Has("leads") || bursts[0].Has("analytics") {
		t.Error("Burst.Has disagrees with Tables")
	}
}

func TestListenerSeparateQuietPeriods(t *testing.T) {
	stream := NewMemoryStream()
	defer stream.Close()
	timers := &manualTimers{}
	rec := &burstRecorder{}

	l, err := Listen(stream, []string{"leads"}, time.Second, rec.record, WithAfterFunc(timers.AfterFunc))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer l.Close()

	publishAll(t, stream, ChangeEvent{Table: "leads", Kind: KindInsert})
	waitTriggers(t, timers, 1)
	timers.fireActive()

	publishAll(t, stream, ChangeEvent{Table: "leads", Kind: KindInsert})
	waitTriggers(t, timers, 2)
	timers.fireActive()

	if got := len(rec.all()); got != 2 {
		t.Errorf("bursts = %d, want 2", got)
	}
}

func TestListenersAreIndependent(t *testing.T) {
	stream := NewMemoryStream()
	defer stream.Close()
	timersA, timersB := &manualTimers{}, &manualTimers{}
	recA, recB := &burstRecorder{}, &burstRecorder{}

	a, err := Listen(stream, []string{"leads"}, time.Second, recA.record, WithAfterFunc(timersA.AfterFunc))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer a.Close()
	b, err := Listen(stream, []string{"leads"}, time.Second, recB.record, WithAfterFunc(timersB.AfterFunc))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer b.Close()

	publishAll(t, stream, ChangeEvent{Table: "leads", Kind: KindInsert})
	waitTriggers(t, timersA, 1)
	waitTriggers(t, timersB, 1)

	timersA.fireActive()
	if len(recA.all()) != 1 || len(recB.all()) != 0 {
		t.Errorf("bursts a=%d b=%d, want 1 and 0", len(recA.all()), len(recB.all()))
	}
	timersB.fireActive()
	if len(recB.all()) != 1 {
		t.Errorf("listener b bursts = %d, want 1", len(recB.all()))
	}
}

func TestListenerCloseCancelsPending(t *testing.T) {
	stream := NewMemoryStream()
	defer stream.Close()
	timers := &manualTimers{}
	rec := &burstRecorder{}

	l, err := Listen(stream, []string{"leads"}, time.Second, rec.record, WithAfterFunc(timers.AfterFunc))
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	publishAll(t, stream, ChangeEvent{Table: "leads", Kind: KindInsert})
	waitTriggers(t, timers, 1)

	l.Close()
	l.Close()
	timers.fireActive()

	if got := len(rec.all()); got != 0 {
		t.Errorf("bursts after Close = %d", got)
	}
	if l.debounce.State() != StateIdle {
		t.Errorf("debouncer state = %v", l.debounce.State())
	}
}

func TestListenRejectsNilCallback(t *testing.T) {
	stream := NewMemoryStream()
	defer stream.Close()
	if _, err := Listen(stream, []string{"leads"}, time.Second, nil); err == nil {
		t.Error("nil callback accepted")
	}
}
