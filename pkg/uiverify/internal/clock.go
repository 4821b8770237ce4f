// Package internal provides internal utilities for the uiverify packages.
package internal

import (
	"sync"
	"time"
)

// Clock is an interface for obtaining monotonic time.
// Waits measure their deadlines and elapsed times through a Clock so that
// polling behaviour can be tested without real delays.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically non-decreasing time values.
	Now() time.Time
}

// MonotonicClock is a Clock backed by time.Now, which carries a monotonic
// reading in Go.
type MonotonicClock struct{}

// Now returns the current system time.
func (MonotonicClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually advanced Clock. It is safe for concurrent use.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMockClock creates a MockClock initialized to t.
// If t is zero, it starts at a fixed, non-zero instant.
func NewMockClock(t time.Time) *MockClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &MockClock{current: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by d.
// Panics if d is negative to maintain monotonicity.
func (m *MockClock) Advance(d time.Duration) {
	if d < 0 {
		panic("MockClock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// TickingClock advances by a fixed step every time Now is called.
// Poll loops driven by a TickingClock make progress in simulated time
// proportional to the number of samples they take.
type TickingClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewTickingClock creates a TickingClock starting at a fixed instant.
func NewTickingClock(step time.Duration) *TickingClock {
	if step < 0 {
		panic("NewTickingClock: step must be non-negative")
	}
	return &TickingClock{current: time.Unix(1000000000, 0), step: step}
}

// Now returns the current simulated time and then advances it by one step.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}
