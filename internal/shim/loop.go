package shim

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/syscallcond"
)

// ErrorKind selects which of a SyscallError's fields apply, mirroring
// the three-variant result the source's syscall handlers return
// (spec §4.12): Failed, Blocked, Native. Success is reported by a nil
// *SyscallError, not a fourth Kind.
type ErrorKind uint8

const (
	ErrFailed ErrorKind = iota
	ErrBlocked
	ErrNative
)

// SyscallError is what a Handler returns instead of a plain error,
// carrying the extra data each variant needs.
type SyscallError struct {
	Kind ErrorKind

	// ErrFailed
	Errno       unix.Errno
	Restartable bool

	// ErrBlocked
	Condition *syscallcond.Condition
}

func (e *SyscallError) Error() string {
	switch e.Kind {
	case ErrFailed:
		return "shim: syscall failed: " + e.Errno.Error()
	case ErrBlocked:
		return "shim: syscall blocked"
	case ErrNative:
		return "shim: syscall deferred to native execution"
	default:
		return "shim: unknown syscall error"
	}
}

// Failed builds a terminal-failure SyscallError.
func Failed(errno unix.Errno, restartable bool) *SyscallError {
	return &SyscallError{Kind: ErrFailed, Errno: errno, Restartable: restartable}
}

// Blocked builds a SyscallError that suspends the thread on cond until
// it fires. cond must already be armed (WaitFile/WaitTimeout/WaitChild
// called) by the handler before returning it.
func Blocked(cond *syscallcond.Condition, restartable bool) *SyscallError {
	return &SyscallError{Kind: ErrBlocked, Condition: cond, Restartable: restartable}
}

// Native builds a SyscallError instructing the shim to perform the
// syscall for real.
func Native() *SyscallError { return &SyscallError{Kind: ErrNative} }

// ShimClient is the manager's handle to one managed thread's reply
// channel. The real implementation carries ManagerReply frames over a
// shared-memory pkg/xsync.Channel (or EncodeReply over a pipe, for an
// out-of-process deployment); tests substitute a recording fake.
type ShimClient interface {
	Send(r ManagerReply)
}

// Handler is a single emulated syscall's implementation: mutate
// whatever state the syscall touches and report success, failure,
// blocking, or native passthrough.
type Handler[C any] func(ctx C, ev SyscallEvent) (SyscallReg, *SyscallError)

// Dispatch drives one SyscallEvent through handler to a terminal
// ManagerReply sent over client. If the handler blocks, Dispatch hooks
// the condition's resumption callback so that, once it fires, the
// handler reruns automatically (spec §4.12's "Blocked ... reruns the
// handler when the condition fires") — recursing into Dispatch again,
// so a handler may block more than once (e.g. a restarted read that
// immediately blocks again) before finally completing.
func Dispatch[C any](client ShimClient, ctx C, ev SyscallEvent, handler Handler[C]) {
	reg, serr := handler(ctx, ev)
	if serr == nil {
		client.Send(ManagerReply{Kind: KindComplete, Retval: int64(reg)})
		return
	}
	switch serr.Kind {
	case ErrFailed:
		client.Send(ManagerReply{
			Kind:        KindComplete,
			Retval:      -int64(serr.Errno),
			Restartable: serr.Restartable,
		})
	case ErrNative:
		client.Send(ManagerReply{Kind: KindDoNative})
	case ErrBlocked:
		serr.Condition.SetOnFire(func(outcome syscallcond.Outcome) {
			if outcome == syscallcond.OutcomeSignal {
				client.Send(ManagerReply{
					Kind:        KindComplete,
					Retval:      -int64(unix.EINTR),
					Restartable: serr.Restartable,
				})
				return
			}
			Dispatch(client, ctx, ev, handler)
		})
	}
}

// SendAddThread issues the clone-emulation request described in spec
// §4.14: instead of a normal terminal reply, the manager asks the shim
// to perform a native clone with the given child stack/TLS/flags.
// internal/clone calls this directly rather than going through Dispatch,
// since AddThread is not one of SyscallError's three variants.
func SendAddThread(client ShimClient, childStack, childTLS uintptr, flags uint64) {
	client.Send(ManagerReply{
		Kind:       KindAddThread,
		ChildStack: childStack,
		ChildTLS:   childTLS,
		CloneFlags: flags,
	})
}

// SendNestedSyscall issues a manager-initiated syscall the shim must
// execute natively on the managed thread's behalf (e.g. a
// memory-manager helper), per spec §4.12's "Syscall(...)" variant.
func SendNestedSyscall(client ShimClient, num int64, args [6]SyscallReg) {
	client.Send(ManagerReply{Kind: KindNestedSyscall, NestedNum: num, NestedArgs: args})
}
