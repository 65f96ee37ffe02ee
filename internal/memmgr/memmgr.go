// Package memmgr implements managed-process memory access (spec §4.11):
// reads and writes against a managed thread's address space via
// process_vm_readv/process_vm_writev, split on page boundaries so a
// partially-unmapped transfer can still return its mapped prefix.
package memmgr

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// ForeignPtr is a typed integer address in the managed process's virtual
// memory. It is never dereferenced in the simulator's own address
// space — only ever passed to a Manager's Read/Write methods, per
// spec §4.11 and the "coroutine-like blocked syscalls" / "managed-memory
// access" design notes in spec §9.
type ForeignPtr[T any] struct {
	addr uint64
}

// NewForeignPtr wraps a raw guest address.
func NewForeignPtr[T any](addr uint64) ForeignPtr[T] { return ForeignPtr[T]{addr: addr} }

// Null reports whether the pointer is the zero address.
func (p ForeignPtr[T]) Null() bool { return p.addr == 0 }

// Addr returns the raw address, for passing to a syscall handler's
// outgoing nested syscall (the only legitimate reason to unwrap it).
func (p ForeignPtr[T]) Addr() uint64 { return p.addr }

// Add returns p advanced by n units of size_of(T), matching the source's
// pointer arithmetic in units of size_of::<T>().
func (p ForeignPtr[T]) Add(n int64, elemSize uint64) ForeignPtr[T] {
	return ForeignPtr[T]{addr: uint64(int64(p.addr) + n*int64(elemSize))}
}

// Cast reinterprets p's address as a pointer to U.
func Cast[U, T any](p ForeignPtr[T]) ForeignPtr[U] { return ForeignPtr[U]{addr: p.addr} }

// Manager owns remote memory access for one process, keyed by the TID of
// whichever thread is currently live — per spec §4.11, once the
// thread-group leader exits, only live TIDs remain valid, so callers
// must supply a fresh TID on every access rather than caching the
// process's leader PID.
type Manager struct {
	exited bool

	// sharedWritable tracks whether mmap(MAP_SHARED, PROT_WRITE) has ever
	// been recorded against this process (spec §4.14): full mapping
	// bookkeeping is out of scope, but fork() needs this one bit to
	// decide whether it is safe to let through.
	sharedWritable bool
}

// New returns a Manager for a freshly-started process.
func New() *Manager { return &Manager{} }

// MarkExited refuses all future writes, matching spec §4.11 "writes are
// refused if the process has exited".
func (m *Manager) MarkExited() { m.exited = true }

// MarkSharedWritableMapping records that the process now holds at least
// one MAP_SHARED|PROT_WRITE mapping (an mmap handler calls this; no
// full mapping table is modeled).
func (m *Manager) MarkSharedWritableMapping() { m.sharedWritable = true }

// HasSharedWritableMappings reports whether any such mapping has been
// recorded, per spec §4.14's fork() safety check.
func (m *Manager) HasSharedWritableMappings() bool { return m.sharedWritable }

// Read copies len(buf) bytes starting at addr out of tid's address
// space into buf, splitting the transfer on page boundaries so a
// partially-unmapped read still returns its mapped prefix (spec §4.11).
// It returns the number of bytes actually read. An error (typically
// EFAULT) is returned only when not even the first byte could be read;
// a transfer cut short after a non-empty prefix returns that prefix's
// length and a nil error.
func (m *Manager) Read(tid int, addr ForeignPtr[byte], buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		chunk := pageAlignedChunk(addr.addr+uint64(total), len(buf)-total)
		local := []unix.Iovec{{Base: &buf[total], Len: uint64(chunk)}}
		remote := []unix.RemoteIovec{{Base: uintptr(addr.addr + uint64(total)), Len: chunk}}
		n, err := unix.ProcessVMReadv(tid, local, remote, 0)
		if n > 0 {
			total += n
		}
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return total, fmt.Errorf("memmgr: process_vm_readv tid=%d: %w", tid, err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Write copies buf into tid's address space starting at addr, refusing
// outright if the process has already exited.
func (m *Manager) Write(tid int, addr ForeignPtr[byte], buf []byte) (int, error) {
	if m.exited {
		return 0, fmt.Errorf("memmgr: write to exited process (tid=%d): %w", tid, unix.ESRCH)
	}
	total := 0
	for total < len(buf) {
		chunk := pageAlignedChunk(addr.addr+uint64(total), len(buf)-total)
		local := []unix.Iovec{{Base: &buf[total], Len: uint64(chunk)}}
		remote := []unix.RemoteIovec{{Base: uintptr(addr.addr + uint64(total)), Len: chunk}}
		n, err := unix.ProcessVMWritev(tid, local, remote, 0)
		if n > 0 {
			total += n
		}
		if err != nil {
			if total > 0 {
				return total, nil
			}
			return total, fmt.Errorf("memmgr: process_vm_writev tid=%d: %w", tid, err)
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// pageAlignedChunk returns how many bytes to transfer in the next
// syscall so the transfer never straddles more pages than necessary: up
// to the end of the current page, capped at remaining.
func pageAlignedChunk(addr uint64, remaining int) int {
	untilPageEnd := int(pageSize - (addr % pageSize))
	if untilPageEnd < remaining {
		return untilPageEnd
	}
	return remaining
}
