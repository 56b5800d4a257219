// Package ktime wraps the monotonic clock reads xcapture's kernel-side
// components would take with CLOCK_MONOTONIC, and the wall-clock base the
// consumer correlates them against when rendering timestamps.
package ktime

import (
	"time"

	"golang.org/x/sys/unix"
)

// Now returns the current monotonic time in nanoseconds, the unit every
// eTSA and event timestamp is carried in.
func Now() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		// A clock read failing here means the clock was already proven
		// readable at startup (Establish), so fall back rather than panic.
		return time.Now().UnixNano()
	}
	return ts.Nano()
}

// WallNow returns the current wall-clock time in nanoseconds since epoch.
func WallNow() int64 {
	return time.Now().UnixNano()
}

// Correlation converts monotonic timestamps to wall-clock ones, anchored
// at the (t_mono_0, t_wall_0) pair captured once at startup.
type Correlation struct {
	MonoBase int64
	WallBase int64
}

// Establish captures a fresh (mono, wall) base pair. A clock-read failure
// here is treated as fatal at startup by callers.
func Establish() (Correlation, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return Correlation{}, err
	}
	return Correlation{MonoBase: ts.Nano(), WallBase: time.Now().UnixNano()}, nil
}

// ToWall converts a monotonic ktime to wall-clock nanoseconds since epoch.
// Small negative deltas are possible near the anchor point and are
// rendered verbatim rather than clamped to zero.
func (c Correlation) ToWall(monoKtime int64) int64 {
	return c.WallBase + (monoKtime - c.MonoBase)
}
