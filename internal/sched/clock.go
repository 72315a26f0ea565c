// Package sched drives the periodic strategy cycles: a trading-window
// clock gates execution and the loop handles heartbeats, summaries and
// failure isolation.
package sched

import "time"

// Window is one daily trading window in minutes of day, inclusive.
type Window struct {
	StartMinute int
	EndMinute   int
}

// Clock answers whether the current wall-clock time, in a fixed timezone,
// falls inside any configured trading window.
type Clock struct {
	loc     *time.Location
	windows []Window
	now     func() time.Time
}

// NewClock creates a clock. loc nil means UTC.
func NewClock(loc *time.Location, windows []Window) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, windows: windows, now: time.Now}
}

// Now returns the current time in the clock's timezone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// TradingOpen reports whether now falls inside a trading window.
func (c *Clock) TradingOpen() bool {
	now := c.Now()
	minute := now.Hour()*60 + now.Minute()
	for _, w := range c.windows {
		if minute >= w.StartMinute && minute <= w.EndMinute {
			return true
		}
	}
	return false
}
