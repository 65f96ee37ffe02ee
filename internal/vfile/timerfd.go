package vfile

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// Scheduler is the minimal host capability timerfd (and, per spec
// §4.13, itimers) need: schedule a callback at an absolute EmulatedTime
// and read the current time. Satisfied by the host's event queue.
type Scheduler interface {
	Now() clock.EmulatedTime
	ScheduleAt(at clock.EmulatedTime, fn func())
}

// Timer is the (expiration_time, interval) pair a TimerFD (and itimers,
// internal/sig) wrap, per spec §4.7/§4.13.
type Timer struct {
	sched      Scheduler
	expiration clock.EmulatedTime
	interval   clock.SimulationTime
	armed      bool
	generation uint64
	onFire     func()
}

// NewTimer returns an unarmed timer driven by sched.
func NewTimer(sched Scheduler, onFire func()) *Timer {
	return &Timer{sched: sched, onFire: onFire}
}

// Arm schedules the timer to fire at "at", repeating every interval
// thereafter if interval > 0. Re-arming cancels any previously scheduled
// firing (the generation counter makes the stale callback a no-op).
func (t *Timer) Arm(at clock.EmulatedTime, interval clock.SimulationTime) {
	t.generation++
	t.expiration = at
	t.interval = interval
	t.armed = true
	gen := t.generation
	t.sched.ScheduleAt(at, func() { t.fire(gen) })
}

// Disarm cancels the pending firing (the next scheduled callback becomes
// a stale no-op via the generation check).
func (t *Timer) Disarm() {
	t.generation++
	t.armed = false
}

// Armed reports whether the timer currently has a pending expiration.
func (t *Timer) Armed() bool { return t.armed }

// Remaining returns the simulated duration until the next expiration, or
// zero if unarmed.
func (t *Timer) Remaining() clock.SimulationTime {
	if !t.armed {
		return 0
	}
	return t.expiration.SaturatingDurationSince(t.sched.Now())
}

// Interval returns the configured repeat interval.
func (t *Timer) Interval() clock.SimulationTime { return t.interval }

func (t *Timer) fire(gen uint64) {
	if gen != t.generation {
		return // stale: disarmed or re-armed since scheduling.
	}
	if t.interval > 0 {
		t.expiration = t.expiration.Add(t.interval)
		t.sched.ScheduleAt(t.expiration, func() { t.fire(gen) })
	} else {
		t.armed = false
	}
	if t.onFire != nil {
		t.onFire()
	}
}

// TimerFD wraps a Timer with an 8-byte expiration counter (spec §4.7).
type TimerFD struct {
	StateEventSource
	timer   *Timer
	counter uint64
	status  FileStatus
	closed  bool
}

// NewTimerFD returns a timerfd driven by sched.
func NewTimerFD(sched Scheduler) *TimerFD {
	tfd := &TimerFD{}
	tfd.state = StateActive
	tfd.timer = NewTimer(sched, func() {
		cbq := &CallbackQueue{}
		tfd.counter++
		tfd.Adjust(StateReadable, 0, cbq)
		cbq.Drain()
	})
	return tfd
}

// SetTime arms (or disarms, if at.IsMax()) the underlying timer. This is
// the handler-facing surface for timerfd_settime(2).
func (f *TimerFD) SetTime(at clock.EmulatedTime, interval clock.SimulationTime) {
	if at.IsMax() {
		f.timer.Disarm()
		return
	}
	f.timer.Arm(at, interval)
}

// GetTime returns (remaining, interval) for timerfd_gettime(2).
func (f *TimerFD) GetTime() (clock.SimulationTime, clock.SimulationTime) {
	return f.timer.Remaining(), f.timer.Interval()
}

func (f *TimerFD) Status() FileStatus     { return f.status }
func (f *TimerFD) SetStatus(s FileStatus) { f.status = s }

func (f *TimerFD) Readv(iov [][]byte, cbq *CallbackQueue) (int, error) {
	if f.counter == 0 {
		if f.status.Has(StatusNonblock) {
			return 0, unix.EWOULDBLOCK
		}
		return 0, errWouldBlockNoData
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], f.counter)
	f.counter = 0
	f.Adjust(0, StateReadable, cbq)
	return scatter(buf[:], iov), nil
}

func (f *TimerFD) Writev(iov [][]byte, cbq *CallbackQueue) (int, error) {
	return 0, unix.EINVAL
}

func (f *TimerFD) Ioctl(req uintptr, arg []byte, cbq *CallbackQueue) error { return unix.ENOTTY }

func (f *TimerFD) Close(cbq *CallbackQueue) error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.timer.Disarm()
	f.SetState(f.state|StateClosed, cbq)
	return nil
}
