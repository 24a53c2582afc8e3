// Package scheduler owns named, cancelable timer tasks. A name identifies at most
// one task: scheduling under a name that is already running replaces it, and
// cancelling a name that is not running is a no-op. Teardown is one CancelAll.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler runs one-shot and repeating tasks on a Clock.
type Scheduler struct {
	clock Clock

	mu     sync.Mutex
	tasks  map[string]*task
	gen    uint64
	closed bool
}

type task struct {
	timer Timer
	every time.Duration
	gen   uint64
	fn    func()
}

// New returns a scheduler on clock (RealClock when nil).
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock, tasks: map[string]*task{}}
}

// Clock returns the scheduler's clock.
func (s *Scheduler) Clock() Clock { return s.clock }

// After runs fn once after d.
func (s *Scheduler) After(name string, d time.Duration, fn func()) {
	s.schedule(name, d, 0, fn)
}

// Every runs fn every d, first after d.
func (s *Scheduler) Every(name string, d time.Duration, fn func()) {
	s.schedule(name, d, d, fn)
}

func (s *Scheduler) schedule(name string, d, every time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cancelLocked(name)
	s.gen++
	t := &task{every: every, gen: s.gen, fn: fn}
	s.tasks[name] = t
	t.timer = s.clock.AfterFunc(d, s.firer(name, t.gen))
}

func (s *Scheduler) firer(name string, gen uint64) func() {
	return func() {
		s.mu.Lock()
		t, ok := s.tasks[name]
		if !ok || t.gen != gen {
			// cancelled or replaced after the timer was armed
			s.mu.Unlock()
			return
		}
		if t.every > 0 {
			t.timer = s.clock.AfterFunc(t.every, s.firer(name, gen))
		} else {
			delete(s.tasks, name)
		}
		fn := t.fn
		s.mu.Unlock()
		fn()
	}
}

// Cancel stops the named task. It reports whether a task was running.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(name)
}

func (s *Scheduler) cancelLocked(name string) bool {
	t, ok := s.tasks[name]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, name)
	return true
}

// CancelAll stops every task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.tasks {
		s.cancelLocked(name)
	}
}

// Close cancels every task and refuses new ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name := range s.tasks {
		s.cancelLocked(name)
	}
	s.closed = true
}

// Active reports whether name is scheduled.
func (s *Scheduler) Active(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Len returns the number of scheduled tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
