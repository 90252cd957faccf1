// Package clock provides the scheduler's monotonic time source.
package clock

import "time"

// Clock returns high-resolution seconds since the clock was created.
// All deadlines, sleep targets, metrics and watchdog timers in the scheduler
// are expressed in this time base, never in wall-clock time directly, so
// that they are immune to clock adjustments (matching Go's monotonic time
// guarantees on time.Time values).
type Clock struct {
	epoch time.Time
}

// New creates a Clock anchored at the current instant.
func New() *Clock {
	return &Clock{epoch: time.Now()}
}

// Now returns seconds elapsed since the clock's epoch, as a high-precision
// floating value. It never goes backwards.
func (c *Clock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}
