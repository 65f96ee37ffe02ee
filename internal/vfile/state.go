// Package vfile implements the simulator's open-file object model (spec
// §3 "File", §4.5-§4.7): a common FileState/FileStatus contract shared by
// pipes, sockets, eventfds, timerfds and epoll instances, plus the
// state-event source that lets epoll and blocked syscalls observe state
// transitions without polling.
package vfile

import "golang.org/x/sys/unix"

// FileState is the observable-state bitset every File exposes.
type FileState uint32

const (
	StateActive FileState = 1 << iota
	StateClosed
	StateReadable
	StateWritable
	// StateNoReaders and StateNoWriters are protocol-specific bits used
	// by shared-buffer-backed files (pipes, Unix sockets) per spec §3.
	StateNoReaders
	StateNoWriters
)

// IsWouldBlock reports whether err is one of the package's internal
// would-block sentinels (errWouldBlockNoData/errWouldBlockNoSpace),
// returned by a File's Readv/Writev when it is in blocking mode and
// cannot proceed yet. A syscall handler checks this to decide whether
// to arm a syscallcond.Condition instead of failing outright — these
// sentinels never reach the shim as a guest-visible errno.
func IsWouldBlock(err error) bool {
	_, ok := err.(blockReason)
	return ok
}

// Has reports whether all bits in mask are set.
func (s FileState) Has(mask FileState) bool { return s&mask == mask }

// Any reports whether any bit in mask is set.
func (s FileState) Any(mask FileState) bool { return s&mask != 0 }

// FileStatus is the user-settable status-flags bitset (the O_* flags a
// descriptor carries independent of its FileState).
type FileStatus uint32

const (
	StatusNonblock FileStatus = 1 << iota
	StatusAppend
	StatusDirect
	StatusAsync
)

// Errno is a guest-visible errno value, a typed alias over
// golang.org/x/sys/unix's E* constants so SyscallError can carry it
// without importing syscall directly everywhere (spec §7).
type Errno = unix.Errno

// Listener is registered on a StateEventSource. Filter selects which
// transitions it cares about; Notify is invoked with the new state, the
// bits that changed since the previous state, and the host's
// deferred-callback queue so
// the listener can itself enqueue further notifications without
// reentering the mutating file.
type Listener struct {
	id     uint64
	Filter FileState
	Notify func(newState, changedBits FileState, cbq *CallbackQueue)
}

// Handle is returned by StateEventSource.AddListener; dropping it (by
// calling Remove) unregisters the listener. Pending invocations already
// buffered in a CallbackQueue still run — removing a listener only
// prevents it from being invoked again.
type Handle struct {
	src *StateEventSource
	id  uint64
}

// Remove unregisters the listener. Safe to call more than once.
func (h Handle) Remove() {
	if h.src == nil {
		return
	}
	h.src.removeListener(h.id)
}

// CallbackQueue is the deferred-callback buffer: a mutation collects
// further notifications here instead of invoking them reentrantly, and
// the owner (typically the host's event loop, per spec §9 "Deferred
// notifications") drains it once the mutation completes.
type CallbackQueue struct {
	fns []func()
}

// Defer appends fn to run when the queue is next drained.
func (q *CallbackQueue) Defer(fn func()) {
	q.fns = append(q.fns, fn)
}

// Drain runs and clears all buffered callbacks. Callbacks deferred by a
// callback that runs during Drain are also run, in FIFO order, before
// Drain returns — this matches a state change whose notification itself
// triggers further state changes.
func (q *CallbackQueue) Drain() {
	for len(q.fns) > 0 {
		fn := q.fns[0]
		q.fns = q.fns[1:]
		fn()
	}
}

// StateEventSource is the glue between files and epoll/poll/syscall
// conditions (spec §4.5). It is embedded (by value) into every concrete
// File implementation.
type StateEventSource struct {
	state     FileState
	listeners []*Listener
	nextID    uint64
}

// State returns the current observable state.
func (s *StateEventSource) State() FileState { return s.state }

// AddListener registers a listener matching filter and returns a handle
// to unregister it. Listeners added from within a Notify callback are
// registered for future changes only — Go's append-based listener slice
// is iterated by index snapshot in SetState, so a listener added during
// iteration is simply not part of that snapshot.
func (s *StateEventSource) AddListener(filter FileState, notify func(newState, changedBits FileState, cbq *CallbackQueue)) Handle {
	s.nextID++
	l := &Listener{id: s.nextID, Filter: filter, Notify: notify}
	s.listeners = append(s.listeners, l)
	return Handle{src: s, id: l.id}
}

func (s *StateEventSource) removeListener(id uint64) {
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// SetState mutates the observable state and invokes every matching
// listener at most once, in registration order, with the new state and
// the bits that changed. Once StateClosed is set it is never cleared
// (enforced here) and no further notifications fire for this file after
// that point (spec §3 invariants).
func (s *StateEventSource) SetState(newState FileState, cbq *CallbackQueue) {
	if s.state.Has(StateClosed) {
		// CLOSED is sticky; no further mutation is observable.
		return
	}
	old := s.state
	s.state = newState
	changed := old ^ newState
	if changed == 0 {
		return
	}
	// Snapshot listeners so additions made by a callback (via cbq.Defer
	// or a reentrant AddListener) don't affect this dispatch.
	snapshot := make([]*Listener, len(s.listeners))
	copy(snapshot, s.listeners)
	for _, l := range snapshot {
		if l.Filter&changed != 0 {
			notify := l.Notify
			ns, ch := newState, changed
			cbq.Defer(func() { notify(ns, ch, cbq) })
		}
	}
}

// Adjust is a convenience for SetState that ORs in setBits and clears
// clearBits from the current state (CLOSED still sticky).
func (s *StateEventSource) Adjust(setBits, clearBits FileState, cbq *CallbackQueue) {
	s.SetState((s.state|setBits)&^clearBits, cbq)
}
