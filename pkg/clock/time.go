// Package clock implements the simulator's two time scales: SimulationTime,
// a duration measured from the start of the run, and EmulatedTime, a point
// in time the managed programs observe as wall-clock time.
package clock

import (
	"fmt"
	"time"
)

// SimulationTime is a non-negative duration in nanoseconds relative to the
// start of the simulation.
type SimulationTime int64

const (
	// Zero is the simulation's start instant.
	Zero SimulationTime = 0

	// SimulationTimeMax is the largest representable SimulationTime.
	SimulationTimeMax SimulationTime = 1<<63 - 1
)

// FromNanos, FromMillis and FromSeconds build a SimulationTime from a
// unit count. Negative inputs are clamped to zero, matching the type's
// non-negativity invariant.
func FromNanos(n int64) SimulationTime  { return clampNonNeg(n) }
func FromMillis(n int64) SimulationTime { return clampNonNeg(n * int64(time.Millisecond)) }
func FromSeconds(n int64) SimulationTime {
	return clampNonNeg(n * int64(time.Second))
}

func clampNonNeg(n int64) SimulationTime {
	if n < 0 {
		return 0
	}
	return SimulationTime(n)
}

// Duration converts to a standard library time.Duration.
func (s SimulationTime) Duration() time.Duration { return time.Duration(s) }

// Nanos returns the raw nanosecond count.
func (s SimulationTime) Nanos() int64 { return int64(s) }

// Add returns s+o, saturating at SimulationTimeMax.
func (s SimulationTime) Add(o SimulationTime) SimulationTime {
	sum := int64(s) + int64(o)
	if sum < int64(s) || sum < int64(o) { // overflow
		return SimulationTimeMax
	}
	return SimulationTime(sum)
}

// Sub returns s-o, saturating at zero.
func (s SimulationTime) Sub(o SimulationTime) SimulationTime {
	if o >= s {
		return 0
	}
	return s - o
}

// Mul returns s*n, saturating at SimulationTimeMax.
func (s SimulationTime) Mul(n uint64) SimulationTime {
	if n == 0 || s == 0 {
		return 0
	}
	// n fits in uint64; guard against overflow of int64 multiplication.
	const maxI64 = uint64(SimulationTimeMax)
	if uint64(s) > maxI64/n {
		return SimulationTimeMax
	}
	return SimulationTime(uint64(s) * n)
}

func (s SimulationTime) String() string { return s.Duration().String() }

// unixEpoch2000 is the simulator's emulated-time zero point: 2000-01-01
// 00:00:00 UTC. EmulatedTime values are nanoseconds since this instant, not
// since the real Unix epoch.
var unixEpoch2000 = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// EmulatedTime is a non-negative nanosecond count since unixEpoch2000.
type EmulatedTime uint64

const (
	// SimulationStart is the instant the simulation clock begins at.
	SimulationStart EmulatedTime = 0

	// EmulatedMax is reserved as the invalid/unset sentinel. Arithmetic
	// saturates at this value instead of wrapping.
	EmulatedMax EmulatedTime = 1<<64 - 1
)

// FromSimTime returns the EmulatedTime that is SimulationStart+d.
func FromSimTime(d SimulationTime) EmulatedTime {
	return SimulationStart.Add(SimulationTime(d))
}

// Add returns t+d, saturating at EmulatedMax.
func (t EmulatedTime) Add(d SimulationTime) EmulatedTime {
	if d <= 0 {
		return t
	}
	sum := uint64(t) + uint64(d)
	if sum < uint64(t) {
		return EmulatedMax
	}
	if EmulatedTime(sum) > EmulatedMax {
		return EmulatedMax
	}
	return EmulatedTime(sum)
}

// SaturatingDurationSince returns t-u as a SimulationTime, clamped to zero
// if u is later than t. Used by the token bucket to tolerate clock skew
// between worker threads.
func (t EmulatedTime) SaturatingDurationSince(u EmulatedTime) SimulationTime {
	if u >= t {
		return 0
	}
	return SimulationTime(uint64(t) - uint64(u))
}

// Before reports whether t happens before u.
func (t EmulatedTime) Before(u EmulatedTime) bool { return t < u }

// IsMax reports whether t is the invalid sentinel.
func (t EmulatedTime) IsMax() bool { return t == EmulatedMax }

// ToUnix converts to a real time.Time, useful only for logging.
func (t EmulatedTime) ToUnix() time.Time {
	return unixEpoch2000.Add(time.Duration(t))
}

func (t EmulatedTime) String() string {
	if t.IsMax() {
		return "EmulatedTime(MAX)"
	}
	return fmt.Sprintf("EmulatedTime(%s)", t.ToUnix().Format(time.RFC3339Nano))
}
