package testutil

import (
	"sync"
	"time"
)

// ReferenceTime is the instant scenario tests resolve relative dates against:
// Wednesday 2026-03-18 15:30:45 UTC.
var ReferenceTime = time.Date(2026, time.March, 18, 15, 30, 45, 0, time.UTC)

// FixedClock is a settable time source for tests.
//
// Its Now method has the func() time.Time shape accepted by the engine and
// translator clock options.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock frozen at t. A zero t means ReferenceTime.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = ReferenceTime
	}
	return &FixedClock{now: t}
}

// Now returns the current frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
