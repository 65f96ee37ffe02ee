package vfile

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

// EventFD is an 8-byte counter file (spec §4.7).
type EventFD struct {
	StateEventSource
	counter   uint64
	semaphore bool
	status    FileStatus
	closed    bool
}

// NewEventFD returns an eventfd with the given initial counter value,
// operating in semaphore mode if semaphore is true.
func NewEventFD(initval uint64, semaphore bool) *EventFD {
	e := &EventFD{counter: initval, semaphore: semaphore}
	e.state = StateActive
	if initval > 0 {
		e.state |= StateReadable
	}
	e.state |= StateWritable
	return e
}

func (e *EventFD) Status() FileStatus     { return e.status }
func (e *EventFD) SetStatus(s FileStatus) { e.status = s }

// Readv scatters the counter into the provided iovecs. Only the first
// 8 bytes across all buffers are meaningful, matching eventfd(2)'s
// fixed-width read.
func (e *EventFD) Readv(iov [][]byte, cbq *CallbackQueue) (int, error) {
	if e.counter == 0 {
		if e.status.Has(StatusNonblock) {
			return 0, unix.EWOULDBLOCK
		}
		return 0, errWouldBlockNoData
	}
	var out uint64
	if e.semaphore {
		out = 1
		e.counter--
	} else {
		out = e.counter
		e.counter = 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], out)
	n := scatter(buf[:], iov)
	e.refresh(cbq)
	return n, nil
}

// Writev requires a single contiguous 8-byte source (spec §4.7).
func (e *EventFD) Writev(iov [][]byte, cbq *CallbackQueue) (int, error) {
	flat := gather(iov)
	if len(flat) != 8 {
		return 0, unix.EINVAL
	}
	add := binary.LittleEndian.Uint64(flat)
	if add == ^uint64(0) {
		return 0, unix.EINVAL
	}
	if e.counter+add < e.counter || e.counter+add > ^uint64(0)-1 {
		// Would overflow past u64::MAX - 1 (spec §8 boundary behavior).
		if e.status.Has(StatusNonblock) {
			return 0, unix.EWOULDBLOCK
		}
		return 0, errWouldBlockNoSpace
	}
	e.counter += add
	e.refresh(cbq)
	return 8, nil
}

func (e *EventFD) refresh(cbq *CallbackQueue) {
	if e.counter > 0 {
		e.Adjust(StateReadable, 0, cbq)
	} else {
		e.Adjust(0, StateReadable, cbq)
	}
}

func (e *EventFD) Ioctl(req uintptr, arg []byte, cbq *CallbackQueue) error { return unix.ENOTTY }

func (e *EventFD) Close(cbq *CallbackQueue) error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.SetState(e.state|StateClosed, cbq)
	return nil
}

func scatter(src []byte, iov [][]byte) int {
	n := 0
	for _, b := range iov {
		c := copy(b, src[n:])
		n += c
		if n >= len(src) {
			break
		}
	}
	return n
}

func gather(iov [][]byte) []byte {
	total := 0
	for _, b := range iov {
		total += len(b)
	}
	out := make([]byte, 0, total)
	for _, b := range iov {
		out = append(out, b...)
	}
	return out
}
