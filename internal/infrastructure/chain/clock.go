package chain

import "sync/atomic"

// Clock is a block-height style monotonic counter. Every reading is a tick;
// Advance moves the chain forward, which is how elapsed time accrues.
type Clock struct {
	height atomic.Uint64
}

func NewClock(start uint64) *Clock {
	c := &Clock{}
	c.height.Store(start)
	return c
}

func (c *Clock) Now() uint64 {
	return c.height.Load()
}

// Advance moves the counter forward by n ticks and returns the new height.
func (c *Clock) Advance(n uint64) uint64 {
	return c.height.Add(n)
}
