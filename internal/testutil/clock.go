package testutil

import (
	"sync"
	"time"
)

// StepClock is a fake monotonic clock for timing tests.
//
// Every call to Now advances the clock by Step, so a measured interval of
// one Now/Now pair is exactly Step. Steps may be changed between calls to
// simulate operations of different cost.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	now   time.Time
	step  time.Duration
	calls int
}

// NewStepClock creates a clock starting at a fixed instant that advances by
// step on every reading.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	c.calls++
	return t
}

// SetStep changes the advance applied by later readings.
func (c *StepClock) SetStep(step time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
}

// Calls returns how many times Now has been called.
func (c *StepClock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
