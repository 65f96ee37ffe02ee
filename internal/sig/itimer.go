package sig

import (
	"time"

	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// ITimerReal is ITIMER_REAL (spec §4.13): a process-wide (value,
// interval) pair. Firing synthesizes SIGALRM via onFire, supplied by
// whichever thread-signal state the owning process designates (its
// main thread's ThreadSignals, typically).
type ITimerReal struct {
	timer *vfile.Timer
}

// NewITimerReal returns a disarmed itimer driven by sched, calling
// onFire (expected to do ts.Raise(int(unix.SIGALRM)) against the target
// thread) on every expiration.
func NewITimerReal(sched vfile.Scheduler, onFire func()) *ITimerReal {
	return &ITimerReal{timer: vfile.NewTimer(sched, onFire)}
}

// Set arms (value>0) or disarms (value<=0) the timer, returning the
// (remaining, interval) pair it had *before* this call — setitimer(2)'s
// documented return value.
func (it *ITimerReal) Set(sched vfile.Scheduler, value, interval clock.SimulationTime) (clock.SimulationTime, clock.SimulationTime) {
	prevRemaining, prevInterval := it.Get()
	if value <= 0 {
		it.timer.Disarm()
	} else {
		it.timer.Arm(sched.Now().Add(value), interval)
	}
	return prevRemaining, prevInterval
}

// Get returns the current (remaining, interval) pair, matching
// getitimer(2): remaining is always <= what was originally set, never
// more (spec §4.13).
func (it *ITimerReal) Get() (clock.SimulationTime, clock.SimulationTime) {
	return it.timer.Remaining(), it.timer.Interval()
}

// Alarm is alarm(2): equivalent to Set(ITIMER_REAL, {seconds, 0}),
// returning ceil(previous remaining / 1s), with a nonzero sub-second
// remainder rounding up to 1 (never 0 — 0 means "no timer was set"),
// per spec §4.13.
func (it *ITimerReal) Alarm(sched vfile.Scheduler, seconds uint32) uint32 {
	prevRemaining, _ := it.Set(sched, clock.FromSeconds(int64(seconds)), 0)
	return ceilSeconds(prevRemaining)
}

func ceilSeconds(d clock.SimulationTime) uint32 {
	if d <= 0 {
		return 0
	}
	secs := d.Nanos() / int64(time.Second)
	if d.Nanos()%int64(time.Second) != 0 {
		secs++
	}
	if secs == 0 {
		secs = 1
	}
	return uint32(secs)
}
