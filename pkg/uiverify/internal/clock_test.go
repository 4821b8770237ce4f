package internal

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonicClock_NonDecreasing(t *testing.T) {
	var c MonotonicClock
	prev := c.Now()
	for range 100 {
		now := c.Now()
		require.False(t, now.Before(prev), "time went backwards")
		prev = now
	}
}

func TestMockClock_Advance(t *testing.T) {
	c := NewMockClock(time.Time{})
	start := c.Now()
	assert.False(t, start.IsZero())

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, c.Now().Sub(start))
	assert.Equal(t, c.Now(), c.Now(), "Now must not advance on its own")
}

func TestMockClock_NegativeAdvancePanics(t *testing.T) {
	c := NewMockClock(time.Time{})
	assert.Panics(t, func() { c.Advance(-time.Second) })
}

func TestMockClock_ConcurrentAdvance(t *testing.T) {
	c := NewMockClock(time.Time{})
	start := c.Now()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Second, c.Now().Sub(start))
}

func TestTickingClock_StepsOnEveryRead(t *testing.T) {
	c := NewTickingClock(10 * time.Millisecond)
	a := c.Now()
	b := c.Now()
	d := c.Now()
	assert.Equal(t, 10*time.Millisecond, b.Sub(a))
	assert.Equal(t, 20*time.Millisecond, d.Sub(a))
}

func TestTickingClock_ZeroStepIsFrozen(t *testing.T) {
	c := NewTickingClock(0)
	assert.Equal(t, c.Now(), c.Now())
	assert.Panics(t, func() { NewTickingClock(-time.Millisecond) })
}
