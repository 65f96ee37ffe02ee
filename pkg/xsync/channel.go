package xsync

import (
	"errors"
	"sync/atomic"
)

// ErrWriterIsDead is returned by Receive when the slot holds no content
// and the writer side is marked dead (the WriterDied flag).
var ErrWriterIsDead = errors.New("xsync: writer is dead")

const (
	chanEmpty int32 = iota
	chanWriting
	chanReady
	chanReading
)

const (
	chanFlagHasSleeper int32 = 1 << 8
	chanFlagWriterDied int32 = 1 << 9
	chanStateMask      int32 = 0xff
)

// Channel is a single-producer/single-consumer, cross-process, single-shot
// mailbox: Send panics unless the slot is Empty, Receive blocks until it is
// Ready (or the writer died). It is the IPC primitive the shim and manager
// use to exchange one SyscallEvent/ManagerReply per round-trip (see
// internal/shim). There must never be two concurrent senders or two
// concurrent receivers; violating that is a caller bug, not a runtime
// error, matching the source's documented invariant.
type Channel[T any] struct {
	state int32 // low byte: content state; flag bits: has_sleeper, writer_died
	val   T
}

// NewChannel returns an empty channel.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{state: chanEmpty}
}

// Send transitions Empty -> Ready, storing val, and wakes a sleeping
// receiver if one is registered. It panics if the channel is not Empty,
// per the single-producer invariant.
func (c *Channel[T]) Send(val T) {
	cur := atomic.LoadInt32(&c.state)
	if cur&chanStateMask != chanEmpty {
		panic("xsync: Send on a non-empty channel")
	}
	c.val = val
	for {
		cur = atomic.LoadInt32(&c.state)
		next := (cur &^ chanStateMask) | chanReady
		if atomic.CompareAndSwapInt32(&c.state, cur, next) {
			break
		}
	}
	if atomic.LoadInt32(&c.state)&chanFlagHasSleeper != 0 {
		futexWake(&c.state, 1)
	}
}

// MarkWriterDead sets the writer-died flag and wakes any sleeping
// receiver, causing its Receive to fail with ErrWriterIsDead. Used when
// the managed thread (or its process) exits while the manager might
// still be waiting on a reply.
func (c *Channel[T]) MarkWriterDead() {
	for {
		cur := atomic.LoadInt32(&c.state)
		next := cur | chanFlagWriterDied
		if atomic.CompareAndSwapInt32(&c.state, cur, next) {
			break
		}
	}
	futexWake(&c.state, 1)
}

// Receive blocks until content-state is Ready or the writer died. On
// success it transitions Ready -> Reading -> Empty and returns the
// payload so the slot is available for the next Send.
func (c *Channel[T]) Receive() (T, error) {
	for {
		cur := atomic.LoadInt32(&c.state)
		switch cur & chanStateMask {
		case chanReady:
			if atomic.CompareAndSwapInt32(&c.state, cur, (cur&^chanStateMask)|chanReading) {
				val := c.val
				var zero T
				c.val = zero
				atomic.StoreInt32(&c.state, chanEmpty)
				return val, nil
			}
		default:
			if cur&chanFlagWriterDied != 0 {
				var zero T
				return zero, ErrWriterIsDead
			}
			next := cur | chanFlagHasSleeper
			if atomic.CompareAndSwapInt32(&c.state, cur, next) {
				futexWait(&c.state, next)
			}
		}
	}
}
