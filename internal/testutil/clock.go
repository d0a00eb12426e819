package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant every StepClock starts from.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// StepClock provides a deterministic wall clock for tests.
//
// Each call to Now returns the current instant and then advances it by the
// configured step. A zero step freezes the clock, so every elapsed time
// computed from it renders as zero.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewStepClock creates a clock starting at Epoch that advances by step on
// every Now call.
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{now: Epoch, step: step}
}

// NewFrozenClock creates a clock that always returns Epoch.
func NewFrozenClock() *StepClock {
	return NewStepClock(0)
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Reset rewinds the clock to Epoch.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
