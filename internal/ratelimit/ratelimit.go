package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow grants at most limit acquisitions within any trailing
// window. Grant times are reserved under the mutex in request order, so
// concurrent callers blocked on a full window are released strictly in the
// order they asked. Acquire never fails, it only delays (or is cancelled).
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	ledger []time.Time

	now func() time.Time
}

// PerSecond builds a limiter allowing limit acquisitions per trailing
// second.
func PerSecond(limit int) *SlidingWindow {
	return New(limit, time.Second)
}

// New builds a limiter over an arbitrary trailing window.
func New(limit int, window time.Duration) *SlidingWindow {
	if limit < 1 {
		limit = 1
	}
	return &SlidingWindow{
		limit:  limit,
		window: window,
		ledger: make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// Acquire blocks until a slot is available in the trailing window, or until
// the context is cancelled. The slot reservation survives cancellation; a
// cancelled caller's slot simply goes unused.
func (s *SlidingWindow) Acquire(ctx context.Context) error {
	grantAt := s.reserve()

	wait := grantAt.Sub(s.now())
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reserve appends the caller's grant time to the ledger: now if the window
// has room, otherwise one window after the limit-th most recent grant.
func (s *SlidingWindow) reserve() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	grantAt := s.now()
	if len(s.ledger) >= s.limit {
		earliest := s.ledger[len(s.ledger)-s.limit].Add(s.window)
		if earliest.After(grantAt) {
			grantAt = earliest
		}
	}

	s.ledger = append(s.ledger, grantAt)
	if excess := len(s.ledger) - s.limit; excess > 0 {
		s.ledger = append(s.ledger[:0], s.ledger[excess:]...)
	}

	return grantAt
}
