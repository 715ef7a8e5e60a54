package domain

import (
	"sync"
	"time"
)

// Clock issues the server-side recorded timestamps for transition
// records. RecordedNow never goes backwards even if the wall clock does,
// so the recorded_at column stays monotonically non-decreasing across a
// process lifetime.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a monotonic clock backed by time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockAt returns a clock backed by the given time source. Used in
// tests to control recorded timestamps.
func NewClockAt(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// RecordedNow returns the current time, clamped so consecutive calls are
// non-decreasing.
func (c *Clock) RecordedNow() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}
