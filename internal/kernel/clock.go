package kernel

import "sync/atomic"

// Clock counts completed ticks.
//
// The kernel advances it only after a tick succeeds, so Current is always the
// number of ticks whose updates were fully applied.
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a clock at tick 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next advances the clock and returns the new tick.
func (c *Clock) Next() int64 {
	return c.tick.Add(1)
}

// Current returns the number of completed ticks.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
