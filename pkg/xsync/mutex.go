// Package xsync implements the simulator's self-contained, cross-process
// synchronization primitives: a futex-backed mutex and a single-shot
// channel, both laid out so that a serialized copy remains valid in a
// peer process that maps the same shared-memory block (see pkg/shmem).
package xsync

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	mutexUnlocked int32 = iota
	mutexLocked
	mutexLockedDisconnected
)

// Mutex is a two-field, position-independent lock: a 32-bit futex word
// and the protected payload. It serializes to bytes such that a
// deserialized archive of a Mutex[T] is again a valid Mutex[T] in the
// peer process's address space, matching the source's
// SelfContainedMutex contract.
type Mutex[T any] struct {
	futex int32
	val   T
}

// NewMutex returns a Mutex initialized to UNLOCKED holding val.
func NewMutex[T any](val T) *Mutex[T] {
	return &Mutex[T]{futex: mutexUnlocked, val: val}
}

// MutexGuard holds the lock and grants access to the protected value. Its
// zero value is not meaningful; obtain one via Mutex.Lock.
type MutexGuard[T any] struct {
	m *Mutex[T]
}

// Lock blocks until the mutex transitions UNLOCKED -> LOCKED, using a
// futex wait on contention exactly like the source (non-private, so it
// is safe to wait across process boundaries on a shared mapping).
func (m *Mutex[T]) Lock() *MutexGuard[T] {
	for {
		if atomic.CompareAndSwapInt32(&m.futex, mutexUnlocked, mutexLocked) {
			return &MutexGuard[T]{m: m}
		}
		prev := atomic.LoadInt32(&m.futex)
		if prev == mutexUnlocked {
			continue
		}
		futexWait(&m.futex, prev)
	}
}

// Value returns a pointer to the protected payload. Valid only while the
// guard is held.
func (g *MutexGuard[T]) Value() *T {
	return &g.m.val
}

// Unlock releases the lock and wakes one waiter, if any.
func (g *MutexGuard[T]) Unlock() {
	if g.m == nil {
		return
	}
	atomic.StoreInt32(&g.m.futex, mutexUnlocked)
	futexWake(&g.m.futex, 1)
	g.m = nil
}

// Disconnect transitions LOCKED -> LOCKED_DISCONNECTED without unlocking:
// it relinquishes the guard object but leaves the lock held, so
// serialization (e.g. copying the mutex's bytes into a shared-memory
// block) may continue in-place on this thread. Reconnect reverses this
// from the (possibly different) thread that resumes the critical
// section.
func (g *MutexGuard[T]) Disconnect() {
	if g.m == nil {
		panic("xsync: Disconnect of already-released guard")
	}
	if !atomic.CompareAndSwapInt32(&g.m.futex, mutexLocked, mutexLockedDisconnected) {
		panic("xsync: Disconnect of a mutex not in LOCKED state")
	}
	g.m = nil
}

// Reconnect transitions LOCKED_DISCONNECTED -> LOCKED and returns a fresh
// guard over the same mutex, continuing the critical section begun by
// the Disconnect call.
func (m *Mutex[T]) Reconnect() *MutexGuard[T] {
	if !atomic.CompareAndSwapInt32(&m.futex, mutexLockedDisconnected, mutexLocked) {
		panic("xsync: Reconnect of a mutex not in LOCKED_DISCONNECTED state")
	}
	return &MutexGuard[T]{m: m}
}

func futexWait(addr *int32, expect int32) {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAIT),
		uintptr(expect),
		0, 0, 0,
	)
	if errno != 0 && errno != unix.EAGAIN && errno != unix.EINTR {
		panic(fmt.Sprintf("xsync: FUTEX_WAIT: %v", errno))
	}
}

func futexWake(addr *int32, n int32) {
	_, _, errno := unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		uintptr(unix.FUTEX_WAKE),
		uintptr(n),
		0, 0, 0,
	)
	if errno != 0 {
		panic(fmt.Sprintf("xsync: FUTEX_WAKE: %v", errno))
	}
}
