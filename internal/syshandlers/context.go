// Package syshandlers implements the per-syscall handler functions the
// manager dispatches to (spec §4.12): each mutates descriptor-table,
// file, or timer state and reports success, failure, blocking, or
// native passthrough via the shim package's SyscallError vocabulary.
package syshandlers

import (
	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/vfile"
)

// Context is everything a handler needs: the calling thread's OS tid
// (for memory-manager access), its process's descriptor table, its
// process's memory manager, and the host's timer scheduler. A later
// internal/host ties these to a real Process/Thread; handlers here only
// depend on this narrow surface so they can be built and tested first.
type Context struct {
	Tid         int
	Descriptors *vfile.Table
	Memory      *memmgr.Manager
	Scheduler   vfile.Scheduler
	CBQ         *vfile.CallbackQueue
}

// Handler is the concrete instantiation of shim.Handler for this
// package's Context.
type Handler = shim.Handler[*Context]

// readWriteIovecs copies length contiguous bytes starting at addr out of
// the caller's memory via c.Memory.Read, returning the prefix actually
// read together with Read's error. It does not parse a struct iovec
// array; the handlers here treat their buffer argument as one segment.
func readWriteIovecs(c *Context, addr memmgr.ForeignPtr[byte], length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := c.Memory.Read(c.Tid, addr, buf)
	return buf[:n], err
}
