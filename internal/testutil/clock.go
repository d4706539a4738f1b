package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a manual wall clock for tests.
//
// Every call to Now returns the current instant and then advances it by the
// configured step, so successive events get strictly increasing timestamps
// without depending on the host clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewDeterministicClock creates a clock at start that ticks by step per Now call.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, now: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Current returns the current instant without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *DeterministicClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset returns the clock to its start instant.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
