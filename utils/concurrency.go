package utils

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum interval between consecutive requests.
type Throttle struct {
	interval    time.Duration
	mu          sync.Mutex
	lastRequest time.Time
	sleep       SleepFunc
}

// NewThrottle creates a Throttle; an interval of zero disables waiting.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, sleep: Sleep}
}

// Wait blocks until at least the configured interval has passed since the
// previous call returned.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval > 0 && !t.lastRequest.IsZero() {
		elapsed := time.Since(t.lastRequest)
		if elapsed < t.interval {
			if err := t.sleep(ctx, t.interval-elapsed); err != nil {
				return err
			}
		}
	}
	t.lastRequest = time.Now()
	return nil
}

// IDSet tracks record IDs already merged into a run. It is owned by a single
// merge pass and is not safe for concurrent use.
type IDSet map[string]struct{}

// NewIDSet creates an empty IDSet.
func NewIDSet() IDSet {
	return make(IDSet)
}

// Add reports whether id was newly added.
func (s IDSet) Add(id string) bool {
	if _, exists := s[id]; exists {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Size returns the number of distinct IDs seen.
func (s IDSet) Size() int { return len(s) }
