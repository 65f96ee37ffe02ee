// Package clone implements the manager's half of clone/clone3 and fork
// emulation (spec §4.14). clone(2)/clone3(2) become an AddThreadReq sent
// to the shim: the calling thread blocks until the shim answers with the
// new thread's TID (or a negative errno), at which point the manager
// resumes it with that value as the syscall's return. The shim's own
// half — the native clone syscall, restoring the saved sigcontext on the
// child stack, and re-running shim-thread-init — is explicitly out of
// scope (spec §1's context-switch-assembly non-goal); this package only
// builds the request and interprets the reply.
//
// fork(2) is not emulated via AddThreadReq at all: parent and child both
// continue executing from the same point with no shim-side bookkeeping,
// so it is left to native passthrough, refused outright when doing so
// would be unsafe.
package clone

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/syscallcond"
)

// Request is the subset of clone(2)/clone3(2)'s arguments the manager
// forwards to the shim as an AddThreadReq (spec §4.14): the caller's
// chosen child stack and TLS, the raw clone flags, and the parent/child
// TID pointers the flags may ask the kernel to populate.
type Request struct {
	Flags      uint64
	ChildStack memmgr.ForeignPtr[byte]
	ChildTLS   memmgr.ForeignPtr[byte]
	PTID       memmgr.ForeignPtr[int32]
	CTID       memmgr.ForeignPtr[int32]
}

// Pending is one in-flight AddThreadReq. The calling thread is blocked
// on its condition until Resolve delivers the shim's AddThreadParentRes.
type Pending struct {
	cond   *syscallcond.Condition
	result int64
}

// Resolve delivers the shim's AddThreadParentRes — "the parent receives
// the child PID/TID" (spec §4.14), or a negative errno if the native
// clone failed — waking the blocked caller.
func (p *Pending) Resolve(tidOrErrno int64) {
	p.result = tidOrErrno
	p.cond.Resolve()
}

func finish(p *Pending) (shim.SyscallReg, *shim.SyscallError) {
	if p.result < 0 {
		return 0, shim.Failed(unix.Errno(-p.result), false)
	}
	return shim.SyscallReg(p.result), nil
}

// NewHandler builds a one-shot shim.Handler for a single clone(2)/
// clone3(2) syscall event, plus the Pending the caller (internal/host,
// which owns the shim reply channel) must Resolve once the shim delivers
// AddThreadParentRes.
//
// The returned Handler is stateful and single-use: its first invocation
// sends the AddThreadReq and returns Blocked; the manager reruns that
// same Handler value, never a fresh one, once the condition fires, at
// which point it returns the resolved result instead of cloning again.
// This is spec §9's "coroutine-like blocked syscall" shape, applied to a
// syscall whose resumption is "pick up the delivered value" rather than
// "retry the operation" — clone(2) is not POSIX-restartable, so a signal
// that preempts the wait surfaces as EINTR, never a re-issued clone.
func NewHandler[C any](client shim.ShimClient, req Request) (shim.Handler[C], *Pending) {
	p := &Pending{cond: syscallcond.New(nil)}
	started := false
	h := func(_ C, _ shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
		if !started {
			started = true
			shim.SendAddThread(client, uintptr(req.ChildStack.Addr()), uintptr(req.ChildTLS.Addr()), req.Flags)
			return 0, shim.Blocked(p.cond, false)
		}
		return finish(p)
	}
	return h, p
}

// Fork decides whether a native fork(2) is safe to let through, per
// spec §4.14's documented footgun: shared writable mappings survive a
// fork unchanged, silently diverging the simulated and real address
// spaces, so a process carrying any is refused with EINVAL instead of
// being allowed to misbehave.
func Fork(mm *memmgr.Manager) *shim.SyscallError {
	if mm.HasSharedWritableMappings() {
		return shim.Failed(unix.EINVAL, false)
	}
	return shim.Native()
}
