package testutil

import (
	"sync"
	"time"
)

// Clock is a deterministic time source for record timestamps in tests.
//
// Each call to Now returns the previous value plus a fixed step, so records
// appended through a shared Clock get distinct, strictly increasing
// timestamps regardless of wall-clock resolution.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewClock creates a clock whose first Now returns start.
// A non-positive step defaults to one millisecond.
func NewClock(start time.Time, step time.Duration) *Clock {
	if step <= 0 {
		step = time.Millisecond
	}
	return &Clock{start: start, step: step}
}

// Now returns the next instant. It matches the signature of time.Now so it
// can be assigned to record.Appender.Now.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Peek returns the instant the next Now will return, without advancing.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.calls) * c.step)
}

// Reset rewinds the clock to start.
//
// Used for test reuse. After Reset(), the next call to Now() returns start.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
