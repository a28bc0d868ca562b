package gateway

import (
	"sync"
	"time"
)

// slidingWindow counts events and reports when limit of them fall within
// the trailing window.
type slidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	events []time.Time
	now    func() time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{window: window, limit: limit, now: time.Now}
}

// Full reports whether the window already holds limit events.
func (s *slidingWindow) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evict(s.now())
	return len(s.events) >= s.limit
}

// Add records one event.
func (s *slidingWindow) Add() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evict(now)
	s.events = append(s.events, now)
}

func (s *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.events) && s.events[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		s.events = s.events[i:]
	}
}
