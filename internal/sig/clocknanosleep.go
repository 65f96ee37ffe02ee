package sig

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// ValidateClock reports whether clockid is usable with
// clock_nanosleep(2), per spec §4.13's table: the four ordinary clocks
// are fine; the two *_ALARM clocks need hasAlarmCapability (CAP_WAKE_ALARM
// on Linux); CLOCK_THREAD_CPUTIME_ID is always EINVAL; the *_COARSE
// clocks are ENOTSUP; anything else is EINVAL. A zero return means the
// clock is usable.
func ValidateClock(clockid int32, hasAlarmCapability bool) unix.Errno {
	switch clockid {
	case unix.CLOCK_REALTIME, unix.CLOCK_TAI, unix.CLOCK_MONOTONIC, unix.CLOCK_BOOTTIME:
		return 0
	case unix.CLOCK_REALTIME_ALARM, unix.CLOCK_BOOTTIME_ALARM:
		if !hasAlarmCapability {
			return unix.EPERM
		}
		return 0
	case unix.CLOCK_THREAD_CPUTIME_ID:
		return unix.EINVAL
	case unix.CLOCK_MONOTONIC_COARSE, unix.CLOCK_REALTIME_COARSE:
		return unix.ENOTSUP
	default:
		return unix.EINVAL
	}
}

// NanosleepDeadline resolves clock_nanosleep's request into an absolute
// EmulatedTime deadline and reports whether the call should return 0
// immediately (TIMER_ABSTIME with a deadline already in the past, per
// spec §4.13).
func NanosleepDeadline(now clock.EmulatedTime, absolute bool, requested clock.SimulationTime) (deadline clock.EmulatedTime, alreadyPast bool) {
	if absolute {
		deadline = clock.EmulatedTime(requested)
		return deadline, !now.Before(deadline)
	}
	return now.Add(requested), false
}

// RemainingOnInterrupt computes clock_nanosleep's `rem` out-parameter
// when a relative-mode sleep is interrupted by a signal (spec §4.13):
// the time left until deadline, clamped to zero.
func RemainingOnInterrupt(now, deadline clock.EmulatedTime) clock.SimulationTime {
	return deadline.SaturatingDurationSince(now)
}
