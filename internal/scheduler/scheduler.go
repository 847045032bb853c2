package scheduler

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (t realTimer) Stop() bool { return t.t.Stop() }

// Scheduler tracks one pending completion timer per giveaway id. The registry
// is process-local; recovery after a restart is the owner's job.
type Scheduler struct {
	mu     sync.Mutex
	clock  Clock
	timers map[string]Timer
}

func New() *Scheduler {
	return &Scheduler{
		clock:  realClock{},
		timers: make(map[string]Timer),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Schedule arms a one-shot timer for id. An existing timer for the same id is
// stopped first, so repeated scheduling is idempotent. The timer removes its
// registry entry before running fn, guaranteeing at most one firing per id.
func (s *Scheduler) Schedule(id string, delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	if existing := s.timers[id]; existing != nil {
		existing.Stop()
	}
	s.timers[id] = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
	s.mu.Unlock()
}

// Cancel stops and removes the timer for id; no-op when none is pending.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer := s.timers[id]; timer != nil {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Pending reports whether a timer is armed for id.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[id] != nil
}
