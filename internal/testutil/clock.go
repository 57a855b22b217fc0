package testutil

import "sync"

// DefaultEpoch is the first timestamp a DeterministicClock hands out
// (2023-11-14T22:13:20Z).
const DefaultEpoch uint64 = 1_700_000_000

// DeterministicClock provides a thread-safe, strictly increasing timestamp
// source for tests.
//
// Every call to Now returns the previous value plus one second, so records
// written in sequence get distinct, ordered created_at values and the same
// test produces byte-identical envelopes on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start uint64
	now   uint64
}

// NewDeterministicClock creates a clock whose first Now() returns DefaultEpoch.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(DefaultEpoch)
}

// NewDeterministicClockAt creates a clock whose first Now() returns start.
func NewDeterministicClockAt(start uint64) *DeterministicClock {
	return &DeterministicClock{start: start, now: start - 1}
}

// Now advances the clock by one second and returns the new value.
//
// Implements kv.Clock.
func (c *DeterministicClock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// Current returns the last value handed out without advancing.
func (c *DeterministicClock) Current() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock so the next Now() returns ts.
// Used to write records out of order.
func (c *DeterministicClock) Set(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ts - 1
}

// Reset rewinds the clock to its starting point.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start - 1
}
