package vfile

import "golang.org/x/sys/unix"

// pipeAtomicWriteSize is the size above which packet-mode (O_DIRECT)
// writes are fragmented (spec §4.7), matching Linux's PIPE_BUF.
const pipeAtomicWriteSize = 4096

// PipeMode distinguishes the two pipe endpoints.
type PipeMode int

const (
	PipeRead PipeMode = iota
	PipeWrite
)

// Pipe is one endpoint of a pipe backed by a SharedBuffer (spec §4.7).
// NewPipePair returns the connected read/write pair; each endpoint holds
// a reference to the same buffer.
type Pipe struct {
	buf    *SharedBuffer
	mode   PipeMode
	status FileStatus
	closed bool
}

// NewPipePair returns connected (read, write) endpoints sharing one
// SharedBuffer of the given capacity.
func NewPipePair(capacity int) (*Pipe, *Pipe) {
	buf := NewSharedBuffer(capacity)
	cbq := &CallbackQueue{}
	buf.AddReader(cbq)
	buf.AddWriter(cbq)
	cbq.Drain()
	return &Pipe{buf: buf, mode: PipeRead}, &Pipe{buf: buf, mode: PipeWrite}
}

func (p *Pipe) State() FileState  { return p.buf.State() }
func (p *Pipe) Status() FileStatus { return p.status }
func (p *Pipe) SetStatus(s FileStatus) {
	wasDirect := p.status.Has(StatusDirect)
	p.status = s
	if !wasDirect && s.Has(StatusDirect) && p.buf.Len() == 0 {
		// One-way transition to packet mode, only while empty (spec §4.7).
		p.buf.SetFramed(true)
	}
}

func (p *Pipe) AddListener(filter FileState, notify func(newState, changed FileState, cbq *CallbackQueue)) Handle {
	return p.buf.AddListener(filter, notify)
}

func (p *Pipe) Readv(iov [][]byte, cbq *CallbackQueue) (int, error) {
	if p.mode != PipeRead {
		return 0, unix.EBADF
	}
	if p.buf.Len() == 0 {
		if p.buf.State().Has(StateNoWriters) {
			return 0, nil // EOF
		}
		if p.status.Has(StatusNonblock) {
			return 0, unix.EWOULDBLOCK
		}
		return 0, errWouldBlockNoData
	}
	total := 0
	for _, b := range iov {
		n := p.buf.Read(b)
		total += n
		if n < len(b) {
			break
		}
	}
	p.buf.RefreshReadWrite(cbq)
	return total, nil
}

func (p *Pipe) Writev(iov [][]byte, cbq *CallbackQueue) (int, error) {
	if p.mode != PipeWrite {
		return 0, unix.EBADF
	}
	if p.buf.State().Has(StateNoReaders) {
		return 0, unix.EPIPE
	}
	total := 0
	for _, b := range iov {
		n := p.buf.Write(b, pipeAtomicWriteSize)
		total += n
		if n < len(b) {
			break
		}
	}
	p.buf.RefreshReadWrite(cbq)
	if total == 0 && len(iov) > 0 && len(iov[0]) > 0 {
		if p.status.Has(StatusNonblock) {
			return 0, unix.EWOULDBLOCK
		}
		return 0, errWouldBlockNoSpace
	}
	return total, nil
}

func (p *Pipe) Ioctl(req uintptr, arg []byte, cbq *CallbackQueue) error {
	return unix.ENOTTY
}

func (p *Pipe) Close(cbq *CallbackQueue) error {
	if p.closed {
		return nil
	}
	p.closed = true
	if p.mode == PipeRead {
		p.buf.RemoveReader(cbq)
	} else {
		p.buf.RemoveWriter(cbq)
	}
	if p.buf.State().Has(StateNoReaders) && p.buf.State().Has(StateNoWriters) {
		p.buf.SetState(p.buf.State()|StateClosed, cbq)
	}
	return nil
}

// errWouldBlockNoData and errWouldBlockNoSpace are sentinel conditions a
// blocking caller (the syscall handler, internal/syshandlers) translates
// into a syscallcond.Condition rather than a guest-visible errno; they
// never reach the shim directly.
type blockReason int

const (
	errWouldBlockNoData blockReason = iota
	errWouldBlockNoSpace
)

// ErrWouldBlockNoData and ErrWouldBlockNoSpace are the exported forms of
// the package's would-block sentinels, for File implementations living
// outside this package (e.g. internal/netsim's sockets) that still want
// to participate in the IsWouldBlock protocol.
const (
	ErrWouldBlockNoData  = errWouldBlockNoData
	ErrWouldBlockNoSpace = errWouldBlockNoSpace
)

func (b blockReason) Error() string {
	if b == errWouldBlockNoData {
		return "vfile: would block: no data"
	}
	return "vfile: would block: no space"
}
