// Package tickclock implements the single monotonic tick source (§4.3) that
// every rate window, respawn deadline, and the GameLoop itself reads from.
package tickclock

import "time"

// Clock derives discrete tick numbers from wall-clock milliseconds.
// currentTick(t) = floor(t / tickDurationMs). A Clock is stateless aside
// from its configured duration — "monotonic within a process" is satisfied
// by always deriving from time.Now().UnixMilli(), which never goes backward
// on a running process.
type Clock struct {
	tickDurationMs int64
}

// New creates a Clock with the given tick duration.
func New(tickDuration time.Duration) *Clock {
	return &Clock{tickDurationMs: tickDuration.Milliseconds()}
}

// TickDurationMs returns the configured tick duration in milliseconds.
func (c *Clock) TickDurationMs() int64 { return c.tickDurationMs }

// NowMs returns the current wall-clock time in milliseconds.
func (c *Clock) NowMs() int64 { return time.Now().UnixMilli() }

// CurrentTick returns the tick number for a given wall-clock millisecond
// timestamp.
func (c *Clock) CurrentTick(nowMs int64) int64 {
	if c.tickDurationMs <= 0 {
		return 0
	}
	return nowMs / c.tickDurationMs
}

// Now returns the current tick number.
func (c *Clock) Now() int64 {
	return c.CurrentTick(c.NowMs())
}

// TickToMs converts a tick number back to its starting wall-clock millisecond.
func (c *Clock) TickToMs(tick int64) int64 {
	return tick * c.tickDurationMs
}
