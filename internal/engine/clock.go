package engine

import "sync/atomic"

// Clock is the logical clock that orders audit records.
//
// Every successor, transition and migration error is stamped with a strictly
// increasing seq from this clock. Wall-clock time is never used for ordering.
// On load the clock resumes from the highest seq in the store, so seq stays
// monotone across process restarts.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
