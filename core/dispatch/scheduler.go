package dispatch

import (
	"sync"
	"time"
)

// Scheduler owns at most one pending timeout per order id. It knows nothing
// about order semantics, only timer lifetimes keyed by id, which keeps the
// escalation policy in the coordinator.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms a timeout for orderID, superseding any previous one for the
// same id. Stop returning false means the old timer already fired; its
// callback is still in flight, so the callback re-checks that it is the
// registered timer before it deletes anything or runs onTimeout. A superseded
// or cancelled firing is therefore a no-op and never evicts its replacement.
func (s *Scheduler) Schedule(orderID string, d time.Duration, onTimeout func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[orderID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		current := s.timers[orderID] == t
		if current {
			delete(s.timers, orderID)
		}
		s.mu.Unlock()
		if current {
			onTimeout()
		}
	})
	s.timers[orderID] = t
}

// Cancel stops and clears the timer for orderID if present; no-op otherwise.
func (s *Scheduler) Cancel(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[orderID]; ok {
		t.Stop()
		delete(s.timers, orderID)
	}
}

// Pending reports whether a timer is armed for orderID.
func (s *Scheduler) Pending(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[orderID]
	return ok
}

// Stop cancels every pending timer. Used at service shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
