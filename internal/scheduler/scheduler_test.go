package scheduler

import (
	"sync"
	"testing"
	"time"
)

type fakeTimer struct {
	mu      sync.Mutex
	stopped bool
	fires   time.Time
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := t.stopped
	t.stopped = true
	return !was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{fires: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range f.timers {
		if !t.stopped && !t.fires.After(now) {
			due = append(due, t)
		} else if !t.stopped {
			rest = append(rest, t)
		}
	}
	f.timers = rest
	f.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

func newTestScheduler() (*Scheduler, *fakeClock) {
	s := New()
	clock := &fakeClock{now: time.Unix(0, 0)}
	s.WithClock(clock)
	return s, clock
}

func TestScheduleFiresOnceAndClearsRegistry(t *testing.T) {
	s, clock := newTestScheduler()

	fired := 0
	s.Schedule("g1-1", time.Minute, func() { fired++ })
	if !s.Pending("g1-1") {
		t.Fatalf("expected pending timer")
	}

	clock.Advance(time.Minute)
	if fired != 1 {
		t.Fatalf("expected 1 firing, got %d", fired)
	}
	if s.Pending("g1-1") {
		t.Fatalf("expected registry entry removed after firing")
	}

	clock.Advance(time.Hour)
	if fired != 1 {
		t.Fatalf("expected no further firing, got %d", fired)
	}
}

func TestScheduleReplacesExistingTimer(t *testing.T) {
	s, clock := newTestScheduler()

	first := 0
	second := 0
	s.Schedule("g1-1", time.Minute, func() { first++ })
	s.Schedule("g1-1", 2*time.Minute, func() { second++ })

	clock.Advance(time.Minute)
	if first != 0 {
		t.Fatalf("replaced timer fired")
	}
	clock.Advance(time.Minute)
	if second != 1 {
		t.Fatalf("expected replacement to fire once, got %d", second)
	}
}

func TestCancelStopsPendingTimer(t *testing.T) {
	s, clock := newTestScheduler()

	fired := 0
	s.Schedule("g1-1", time.Minute, func() { fired++ })
	s.Cancel("g1-1")
	if s.Pending("g1-1") {
		t.Fatalf("expected timer removed")
	}

	clock.Advance(time.Hour)
	if fired != 0 {
		t.Fatalf("cancelled timer fired")
	}

	// cancelling again is a no-op
	s.Cancel("g1-1")
}

func TestNegativeDelayFiresImmediately(t *testing.T) {
	s, clock := newTestScheduler()

	fired := 0
	s.Schedule("g1-1", -time.Minute, func() { fired++ })
	clock.Advance(0)
	if fired != 1 {
		t.Fatalf("expected overdue timer to fire immediately, got %d", fired)
	}
}
