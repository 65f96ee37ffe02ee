package vfile

import (
	"container/heap"

	"golang.org/x/sys/unix"
)

// Epoll event bits, aliased from unix so callers don't need a second
// import for EPOLLIN/EPOLLOUT/EPOLLET.
const (
	EpollIn  = unix.EPOLLIN
	EpollOut = unix.EPOLLOUT
	EpollErr = unix.EPOLLERR
	EpollHup = unix.EPOLLHUP
	EpollET  = unix.EPOLLET
)

// ReadyEvent is what epoll_wait(2) reports for one ready entry.
type ReadyEvent struct {
	Events uint32
	Data   uint64
}

type epollEntry struct {
	fd        int32
	file      File
	requested uint32
	data      uint64
	lastState FileState
	listener  Handle
	priority  uint64
	index     int // index into the ready heap, -1 if not ready
}

// Epoll is an emulated epoll instance (spec §4.6). Unlike the teacher's
// zero_copy_epoll_linux.go, which wraps the *host kernel's* epoll to
// avoid a copy on an already-real file descriptor, this is the epoll
// implementation itself: there is no host kernel fd underneath it, only
// the monitored Files' StateEventSource listeners.
type Epoll struct {
	StateEventSource
	monitoring map[int32]*epollEntry
	ready      readyHeap
	priCounter uint64
	status     FileStatus
	closed     bool
}

// NewEpoll returns an empty epoll instance.
func NewEpoll() *Epoll {
	e := &Epoll{monitoring: make(map[int32]*epollEntry)}
	e.state = StateActive
	return e
}

func (e *Epoll) Status() FileStatus     { return e.status }
func (e *Epoll) SetStatus(s FileStatus) { e.status = s }

// eventMask translates requested epoll bits to the FileState bits that
// satisfy them.
func eventMask(requested uint32) FileState {
	var m FileState
	if requested&EpollIn != 0 {
		m |= StateReadable
	}
	if requested&EpollOut != 0 {
		m |= StateWritable
	}
	return m
}

// Add registers fd/file for the requested event bits. EEXIST if already
// present, EBADF if file is already closed (spec §4.6).
func (e *Epoll) Add(fd int32, file File, requested uint32, data uint64) error {
	if _, exists := e.monitoring[fd]; exists {
		return unix.EEXIST
	}
	if file.State().Has(StateClosed) {
		return unix.EBADF
	}
	entry := &epollEntry{fd: fd, file: file, requested: requested, data: data, lastState: file.State(), index: -1}
	entry.listener = file.AddListener(eventMask(requested)|StateClosed, e.makeNotify(entry))
	e.monitoring[fd] = entry
	e.evaluate(entry, file.State(), &CallbackQueue{})
	return nil
}

// Mod replaces the requested events/data for fd. ENOENT if absent.
func (e *Epoll) Mod(fd int32, requested uint32, data uint64) error {
	entry, ok := e.monitoring[fd]
	if !ok {
		return unix.ENOENT
	}
	entry.listener.Remove()
	entry.requested = requested
	entry.data = data
	entry.listener = entry.file.AddListener(eventMask(requested)|StateClosed, e.makeNotify(entry))
	e.evaluate(entry, entry.file.State(), &CallbackQueue{})
	return nil
}

// Del removes fd's registration. ENOENT if absent.
func (e *Epoll) Del(fd int32) error {
	entry, ok := e.monitoring[fd]
	if !ok {
		return unix.ENOENT
	}
	entry.listener.Remove()
	if entry.index >= 0 {
		heap.Remove(&e.ready, entry.index)
	}
	delete(e.monitoring, fd)
	e.refreshReadable(&CallbackQueue{})
	return nil
}

func (e *Epoll) makeNotify(entry *epollEntry) func(newState, changed FileState, cbq *CallbackQueue) {
	return func(newState, changed FileState, cbq *CallbackQueue) {
		if _, ok := e.monitoring[entry.fd]; !ok {
			return // entry was removed between dispatch and this deferred call
		}
		if entry.requested&EpollET != 0 {
			e.evaluateEdge(entry, newState, changed, cbq)
		} else {
			e.evaluate(entry, newState, cbq)
		}
		entry.lastState = newState
	}
}

// evaluate implements level-triggered readiness: ready whenever the
// current state satisfies any requested bit.
func (e *Epoll) evaluate(entry *epollEntry, state FileState, cbq *CallbackQueue) {
	if state.Any(eventMask(entry.requested)) && entry.index < 0 {
		e.pushReady(entry)
	} else if !state.Any(eventMask(entry.requested)) && entry.index >= 0 {
		heap.Remove(&e.ready, entry.index)
	}
	e.refreshReadable(cbq)
}

// evaluateEdge implements edge-triggered readiness: ready only when
// changed bits newly satisfy a requested bit (spec §4.6).
func (e *Epoll) evaluateEdge(entry *epollEntry, state, changed FileState, cbq *CallbackQueue) {
	mask := eventMask(entry.requested)
	if changed.Any(mask) && state.Any(mask) && entry.index < 0 {
		e.pushReady(entry)
	}
	e.refreshReadable(cbq)
}

func (e *Epoll) pushReady(entry *epollEntry) {
	e.priCounter++
	entry.priority = e.priCounter
	heap.Push(&e.ready, entry)
}

func (e *Epoll) refreshReadable(cbq *CallbackQueue) {
	if len(e.ready) > 0 {
		e.Adjust(StateReadable, 0, cbq)
	} else {
		e.Adjust(0, StateReadable, cbq)
	}
}

// Wait pops up to max ready entries in ascending priority (oldest
// first). Level-triggered entries that still satisfy their requested
// events after reporting are re-inserted with a fresh, higher priority
// so other ready entries are reported first on the next call — this is
// the fairness property spec §4.6 requires.
func (e *Epoll) Wait(max int) []ReadyEvent {
	cbq := &CallbackQueue{}
	var out []ReadyEvent
	var requeue []*epollEntry
	for len(out) < max && len(e.ready) > 0 {
		entry := heap.Pop(&e.ready).(*epollEntry)
		entry.index = -1
		events := uint32(0)
		state := entry.file.State()
		if state.Has(StateReadable) && entry.requested&EpollIn != 0 {
			events |= EpollIn
		}
		if state.Has(StateWritable) && entry.requested&EpollOut != 0 {
			events |= EpollOut
		}
		out = append(out, ReadyEvent{Events: events, Data: entry.data})
		if entry.requested&EpollET == 0 && state.Any(eventMask(entry.requested)) {
			requeue = append(requeue, entry)
		}
	}
	for _, entry := range requeue {
		e.pushReady(entry)
	}
	e.refreshReadable(cbq)
	cbq.Drain()
	return out
}

// ReadyLen reports how many entries currently have pending events,
// used by blocked epoll_wait handlers to decide whether to return
// immediately.
func (e *Epoll) ReadyLen() int { return len(e.ready) }

func (e *Epoll) Readv(iov [][]byte, cbq *CallbackQueue) (int, error) { return 0, unix.EINVAL }
func (e *Epoll) Writev(iov [][]byte, cbq *CallbackQueue) (int, error) { return 0, unix.EINVAL }
func (e *Epoll) Ioctl(req uintptr, arg []byte, cbq *CallbackQueue) error { return unix.ENOTTY }

func (e *Epoll) Close(cbq *CallbackQueue) error {
	if e.closed {
		return nil
	}
	e.closed = true
	for _, entry := range e.monitoring {
		entry.listener.Remove()
	}
	e.monitoring = nil
	e.ready = nil
	e.SetState(e.state|StateClosed, cbq)
	return nil
}

// readyHeap is a min-heap over epollEntry.priority, tracking each
// entry's current heap index so Del/re-push can remove it directly.
type readyHeap []*epollEntry

func (h readyHeap) Len() int            { return len(h) }
func (h readyHeap) Less(i, j int) bool  { return h[i].priority < h[j].priority }
func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *readyHeap) Push(x any) {
	e := x.(*epollEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
