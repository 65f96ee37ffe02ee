package host

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/sig"
	"github.com/shadow-sim/shadow-core/internal/syscallcond"
	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/podmem"
	"github.com/shadow-sim/shadow-core/pkg/shmem"
)

// sigchldNum is the signal number SIGCHLD synthesis and disposition
// checks use throughout this file.
const sigchldNum = int(unix.SIGCHLD)

// Rusage is the POD layout backing a Process's resource-usage
// bookkeeping (spec §3 [FULL] "Rusage/zombie bookkeeping"), allocated as
// a named shared-memory block per spec §6 ("shared-memory blocks are
// created under a simulation-unique name") rather than a plain Go
// struct, so the same layout a real shim would update in place has
// somewhere to live.
type Rusage struct {
	podmem.Mark
	UTimeNanos int64
	STimeNanos int64
	MaxRSS     int64
}

// Process is one simulated process (spec §3 "Process"): a descriptor
// table, an address space, a process-wide signal disposition table
// shared by every thread, and the exit/zombie bookkeeping the wait
// family consumes. Grounded on original_source/src/main/host/process.rs'
// responsibilities as described by spec §4.15, adapted to the field set
// this module actually models (no ELF/plugin loading, no rusage CPU-time
// accounting beyond the zeroed placeholder below).
type Process struct {
	PID       int32
	Host      *Host
	ParentPID int32

	Descriptors *vfile.Table
	Memory      *memmgr.Manager
	Actions     *sig.ActionTable

	Threads map[int32]*Thread
	mainTID int32

	children []int32

	exited      bool
	exitStatus  int32
	rusageName  string
	rusageBlock *shmem.Block
	rusage      *Rusage

	waiters []*exitWaiter
}

// exitWaiter is one wait4/waitid caller blocked on this process's
// children, armed via syscallcond.Condition.WaitChild.
type exitWaiter struct {
	pids    []int32
	event   syscallcond.ChildEvent
	onEvent func(pid int, ev syscallcond.ChildEvent)
	done    bool
}

// Exited reports whether exit_group has already run for this process.
func (p *Process) Exited() bool { return p.exited }

// ExitStatus returns the status exit_group recorded. Only meaningful
// once Exited reports true.
func (p *Process) ExitStatus() int32 { return p.exitStatus }

// Rusage returns the process's resource-usage block, valid until Reap
// frees it.
func (p *Process) Rusage() *Rusage { return p.rusage }

// WaitChild implements syscallcond.ChildWaiter: a blocked wait4/waitid
// arms a Condition against this. pids is the wait4 target list (empty
// means "any child", wait4(-1, ...)); onEvent fires at most once, for
// the first already-matching or newly-matching child.
func (p *Process) WaitChild(pids []int, ev syscallcond.ChildEvent, onEvent func(pid int, ev syscallcond.ChildEvent)) func() {
	w := &exitWaiter{pids: toInt32s(pids), event: ev, onEvent: onEvent}
	p.waiters = append(p.waiters, w)
	return func() { p.removeWaiter(w) }
}

func (p *Process) removeWaiter(target *exitWaiter) {
	for i, w := range p.waiters {
		if w == target {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *Process) notifyChildEvent(pid int, ev syscallcond.ChildEvent) {
	for _, w := range p.waiters {
		if w.done || w.event != ev || !matchesPID(w.pids, pid) {
			continue
		}
		w.done = true
		w.onEvent(pid, ev)
	}
}

func matchesPID(pids []int32, pid int) bool {
	if len(pids) == 0 {
		return true
	}
	for _, want := range pids {
		if int(want) == pid {
			return true
		}
	}
	return false
}

func toInt32s(pids []int) []int32 {
	out := make([]int32, len(pids))
	for i, v := range pids {
		out[i] = int32(v)
	}
	return out
}

// Wait4 implements the non-blocking core of wait4(2)/waitid(2) (spec
// §4.15): if one of this process's children already matches pid (0
// meaning any child) and has exited, it reaps that child immediately and
// reports its pid and status. Otherwise, unless the caller passed
// WNOHANG, the caller arms a syscallcond.Condition via WaitChild and
// retries once it fires.
func (p *Process) Wait4(pid int32) (childPID int32, status int32, ok bool) {
	for _, cpid := range p.children {
		child := p.Host.processes[cpid]
		if child == nil || !child.exited {
			continue
		}
		if pid != 0 && cpid != pid {
			continue
		}
		status = child.exitStatus
		p.removeChild(cpid)
		p.Host.Reap(cpid)
		return cpid, status, true
	}
	return 0, 0, false
}

func (p *Process) removeChild(pid int32) {
	for i, c := range p.children {
		if c == pid {
			p.children = append(p.children[:i], p.children[i+1:]...)
			return
		}
	}
}

// Exit implements exit_group(2) (spec §4.15): every open descriptor
// closes, the process becomes a zombie carrying status until reaped,
// its children are reparented to the host's init process, and its
// parent is notified — either by SIGCHLD, or by immediate auto-reap if
// the parent ignores SIGCHLD or keeps its default disposition with
// SA_NOCLDWAIT set (signal(7)'s documented "no zombie is ever created"
// behavior).
func (p *Process) Exit(cbq *vfile.CallbackQueue, status int32) {
	if p.exited {
		return
	}
	p.exited = true
	p.exitStatus = status
	p.Descriptors.CloseAll(cbq)
	p.reparentChildren()

	parent := p.Host.processes[p.ParentPID]
	if parent == nil {
		return
	}
	parent.notifyChildEvent(int(p.PID), syscallcond.ChildExited)

	action := parent.Actions.Get(sigchldNum)
	autoReap := action.Disposition == sig.DispIgnore ||
		(action.Disposition == sig.DispDefault && action.Flags&sig.FlagNoCldWait != 0)
	if autoReap {
		parent.removeChild(p.PID)
		p.Host.Reap(p.PID)
		return
	}
	if main := parent.Threads[parent.mainTID]; main != nil {
		main.Signals.Raise(sigchldNum)
	}
}

// reparentChildren hands every surviving child to the host's init
// process (spec §4.15 "reparenting orphaned children to the host's init
// process"), or leaves them parentless if this process was itself the
// host's init (nothing left to reparent to).
func (p *Process) reparentChildren() {
	initPID := p.Host.initPID
	for _, cpid := range p.children {
		child := p.Host.processes[cpid]
		if child == nil || child.exited {
			continue
		}
		if initPID == 0 || initPID == p.PID {
			child.ParentPID = 0
			continue
		}
		child.ParentPID = initPID
		if init := p.Host.processes[initPID]; init != nil {
			init.children = append(init.children, cpid)
		}
	}
	p.children = nil
}

// DeliverPending drains this thread's pending unblocked signals (spec
// §4.12), terminating the owning process via Exit on a default
// Term/Core action.
func (t *Thread) DeliverPending(cbq *vfile.CallbackQueue) sig.Result {
	res := sig.ProcessSignals(&t.Signals, t.Process.Actions)
	if res.Exited {
		t.Process.Exit(cbq, 128+int32(res.ExitSignal))
	}
	return res
}

// AddThread registers a thread created by a successful clone(2)/clone3(2)
// (internal/clone.NewHandler's Pending.Resolve having delivered a
// non-negative TID), sharing this process's descriptor table, memory
// manager and signal action table per CLONE_THREAD/CLONE_VM/CLONE_FILES
// semantics — this module does not model a thread declining any of
// those flags, since that's a distinct (and rarer) clone configuration
// outside this module's scope.
func (p *Process) AddThread(tid int32, client shim.ShimClient) *Thread {
	t := &Thread{TID: tid, Process: p, Client: client}
	t.Signals.AltStk = sig.NewDisabledAltStack()
	p.Threads[tid] = t
	return t
}
