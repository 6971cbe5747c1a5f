package wait

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose Sleep advances virtual time instantly. OnSleep, when
// set, runs after every sleep with the running sleep count; tests use it to make
// state appear "later" (a file landing on disk, an element rendering).
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  int
	slept   time.Duration
	OnSleep func(n int)
}

// NewFakeClock returns a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current virtual time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances virtual time by d.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps++
	c.slept += d
	n := c.sleeps
	hook := c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
}

// Sleeps returns how many times Sleep was called.
func (c *FakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// Slept returns the total virtual time spent sleeping.
func (c *FakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}
