package turnorch

import (
	"sync"
	"time"
)

// Cancel stops a scheduled callback if it has not fired yet.
type Cancel func()

// Scheduler defers a callback. The combat core never blocks waiting on
// presentation; it reschedules itself through this interface instead.
type Scheduler interface {
	// After runs fn once after d. fn runs outside any orchestrator lock.
	After(d time.Duration, fn func()) Cancel
}

type timerScheduler struct{}

// NewTimerScheduler returns the production Scheduler backed by
// time.AfterFunc.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) After(d time.Duration, fn func()) Cancel {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// ManualScheduler collects deferred callbacks and fires them only when the
// test calls Step. It makes the poll-retry-force-complete sequence fully
// deterministic.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*scheduled
}

type scheduled struct {
	fn func()
}

// NewManualScheduler creates an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) After(d time.Duration, fn func()) Cancel {
	s.mu.Lock()
	defer s.mu.Unlock()
	node := &scheduled{fn: fn}
	s.pending = append(s.pending, node)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		node.fn = nil
	}
}

// Pending returns how many callbacks are queued.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, node := range s.pending {
		if node.fn != nil {
			n++
		}
	}
	return n
}

// Step fires the oldest queued callback. Returns false if none remained.
func (s *ManualScheduler) Step() bool {
	s.mu.Lock()
	var fn func()
	for len(s.pending) > 0 {
		node := s.pending[0]
		s.pending = s.pending[1:]
		if node.fn != nil {
			fn = node.fn
			break
		}
	}
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// RunAll keeps stepping until the queue drains, bounded to avoid spinning
// forever when callbacks reschedule themselves.
//
// Precondition: maxSteps > 0.
// Postcondition: Returns the number of callbacks fired.
func (s *ManualScheduler) RunAll(maxSteps int) int {
	fired := 0
	for fired < maxSteps && s.Step() {
		fired++
	}
	return fired
}
