package engine

import "sync/atomic"

// Clock hands out the engine's logical numbers: item IDs and run epochs.
// Values start at 1 and never repeat for the life of the Clock.
//
// Safe for concurrent use.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock whose first value is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current returns the last value handed out, or 0 if none was.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
