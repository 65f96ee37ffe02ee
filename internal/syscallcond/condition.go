// Package syscallcond implements the blocked-syscall condition (spec
// §4.12, §5): the record a blocked thread waits on, armed against a
// file's state, an absolute wakeup time, a child-process event, or some
// combination, and firing at most once regardless of which arm trips
// first.
package syscallcond

import (
	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// Outcome is why a Condition fired.
type Outcome int

const (
	// OutcomeState means the watched file reached a matching state.
	OutcomeState Outcome = iota
	// OutcomeTimeout means the deadline elapsed before the file matched.
	OutcomeTimeout
	// OutcomeChildEvent means the awaited child-process event occurred.
	OutcomeChildEvent
	// OutcomeSignal means a pending unblocked signal preempted the wait;
	// the resuming handler must treat this as Failed(EINTR) per spec §4.12.
	OutcomeSignal
	// OutcomeReady means an external event the condition had no listener
	// for resolved it directly (e.g. the shim's AddThreadParentRes
	// arriving for a blocked clone(2), spec §4.14).
	OutcomeReady
)

// ChildEvent names the waitid/wait4-style child transition a condition
// can wait on.
type ChildEvent int

const (
	ChildExited ChildEvent = iota
	ChildSignaled
	ChildStopped
	ChildContinued
)

// Scheduler is the host capability a Condition needs to arm a timeout.
// Satisfied by vfile.Scheduler (the host event queue).
type Scheduler = vfile.Scheduler

// ChildWaiter is satisfied by the process-group bookkeeping (internal/host)
// that knows when one of a set of children changes state. It returns a
// cancel function removing the registered callback.
type ChildWaiter interface {
	WaitChild(pids []int, events ChildEvent, onEvent func(pid int, ev ChildEvent)) (cancel func())
}

// Condition is a single-fire, multi-arm wait record. Exactly one of
// file/deadline/child may be armed at a time in the common case, but
// poll(2)-style handlers may arm a file wait and a timeout together, and
// any handler may additionally have a pending-signal preemption race
// against either arm; whichever trips first cancels the rest.
type Condition struct {
	fired bool

	fileHandle vfile.Handle
	hasFile    bool

	sched        Scheduler
	hasTimeout   bool
	timeoutToken uint64 // generation guard so a canceled timeout's callback is a no-op

	childCancel func()
	hasChild    bool

	onFire func(Outcome)
}

// New returns an unarmed condition. onFire is invoked at most once, the
// first time any armed wait trips; the manager passes a closure that
// reruns the blocked syscall handler (spec §4.12's "Blocked" resumption).
func New(onFire func(Outcome)) *Condition {
	return &Condition{onFire: onFire}
}

// WaitFile arms a listener on f for any state matching mask. Firing
// cancels any other armed wait (timeout, child).
func (c *Condition) WaitFile(f vfile.File, mask vfile.FileState) {
	c.hasFile = true
	c.fileHandle = f.AddListener(mask, func(newState, changed vfile.FileState, cbq *vfile.CallbackQueue) {
		if newState.Any(mask) {
			c.fire(OutcomeState)
		}
	})
}

// WaitTimeout arms a wakeup at the given absolute emulated time, via
// sched. Firing cancels any other armed wait.
func (c *Condition) WaitTimeout(sched Scheduler, at clock.EmulatedTime) {
	c.sched = sched
	c.hasTimeout = true
	c.timeoutToken++
	gen := c.timeoutToken
	sched.ScheduleAt(at, func() {
		if gen != c.timeoutToken {
			return // canceled: condition already fired or was re-armed
		}
		c.fire(OutcomeTimeout)
	})
}

// WaitChild arms a wait for any of pids to reach one of the given
// events, via w. Firing cancels any other armed wait.
func (c *Condition) WaitChild(w ChildWaiter, pids []int, ev ChildEvent) {
	c.hasChild = true
	c.childCancel = w.WaitChild(pids, ev, func(pid int, gotEv ChildEvent) {
		c.fire(OutcomeChildEvent)
	})
}

// Resolve fires the condition with OutcomeReady: the caller has no
// vfile-listener arm to set up (an AddThreadParentRes delivery, for
// instance) and is driving the fire directly once its own event
// arrives.
func (c *Condition) Resolve() { c.fire(OutcomeReady) }

// Preempt fires the condition early with OutcomeSignal, per spec §4.12:
// "a pending unblocked signal also fires the condition". Safe to call on
// an already-fired condition (no-op).
func (c *Condition) Preempt() {
	c.fire(OutcomeSignal)
}

// fire cancels every other armed wait and invokes onFire exactly once.
func (c *Condition) fire(outcome Outcome) {
	if c.fired {
		return
	}
	c.fired = true
	c.cancelRemaining()
	if c.onFire != nil {
		c.onFire(outcome)
	}
}

// Cancel tears down every armed wait without firing onFire. Used when
// the owning thread exits or the syscall is abandoned (e.g. process
// exit while blocked).
func (c *Condition) Cancel() {
	if c.fired {
		return
	}
	c.fired = true
	c.cancelRemaining()
}

func (c *Condition) cancelRemaining() {
	if c.hasFile {
		c.fileHandle.Remove()
		c.hasFile = false
	}
	if c.hasTimeout {
		c.timeoutToken++ // invalidate the pending callback's generation check
		c.hasTimeout = false
	}
	if c.hasChild && c.childCancel != nil {
		c.childCancel()
		c.hasChild = false
	}
}

// Fired reports whether the condition has already resolved.
func (c *Condition) Fired() bool { return c.fired }

// SetOnFire installs (or replaces) the resumption callback. Handlers
// construct a Condition with New(nil), arm its waits, and return it to
// the manager's dispatch loop (internal/shim), which calls SetOnFire to
// hook in "rerun the blocked handler" before any arm can possibly fire —
// the simulator is single-threaded per host within a round, so there is
// no race between arming and this call.
func (c *Condition) SetOnFire(fn func(Outcome)) { c.onFire = fn }
