// Package shim implements the manager side of the emulated syscall loop
// (spec §4.12): the message types exchanged with a managed thread and
// the dispatch loop that turns a SyscallEvent into a reply, restarting
// or blocking as the handler demands. The managed thread's own half —
// the native code that actually traps into a syscall and replays it —
// is explicitly out of scope (spec §1's "shim's context-switch assembly"
// non-goal); ShimClient stands in for it.
package shim

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// SyscallReg is a raw syscall argument or return register, matching the
// x86_64 syscall ABI's register width (spec §6).
type SyscallReg = uint64

// SyscallEvent is what a managed thread sends on every syscall trap:
// the syscall number and its six argument registers.
type SyscallEvent struct {
	Num  int64
	Args [6]SyscallReg
}

// MsgKind tags a ManagerReply's variant. Go has no tagged union, so the
// wire and in-process forms both carry a Kind alongside the fields that
// variant uses; this mirrors the teacher's Type+Length-prefixed TLV
// records (tlv.go), generalized from a byte/uint16 pair to the coarser
// syscall-event frame this protocol needs.
type MsgKind uint8

const (
	// KindComplete carries a final return value (spec §4.12).
	KindComplete MsgKind = iota
	// KindDoNative instructs the shim to make the syscall for real.
	KindDoNative
	// KindNestedSyscall is a syscall the manager asks the shim to run
	// natively on its behalf (e.g. a memory-manager helper call),
	// replying with KindComplete once done.
	KindNestedSyscall
	// KindAddThread asks the shim to clone a new managed thread.
	KindAddThread
)

// ManagerReply is the manager's answer to a SyscallEvent, or to a
// previous ManagerReply's nested-syscall request. Exactly one group of
// fields is meaningful, selected by Kind.
type ManagerReply struct {
	Kind MsgKind

	// KindComplete
	Retval      int64
	Restartable bool

	// KindNestedSyscall
	NestedNum  int64
	NestedArgs [6]SyscallReg

	// KindAddThread
	ChildStack uintptr
	ChildTLS   uintptr
	CloneFlags uint64
}

// AddThreadParentRes is the shim's reply to a KindAddThread message: the
// new thread's OS TID, or a negative errno on failure.
type AddThreadParentRes struct {
	TidOrErrno int64
}

// Frame errors, returned by Decode on a truncated or malformed wire
// frame (analogous to the teacher's ErrTruncatedTLV/ErrMalformedTLV).
var (
	ErrTruncatedFrame = errors.New("shim: truncated frame")
	ErrMalformedFrame = errors.New("shim: malformed frame")
)

// syscallEventFrameSize is the encoded size of a SyscallEvent: 1 kind
// byte (always KindComplete's absence marker — events have no Kind) is
// not used; the frame is a flat 8 + 6*8 = 56 bytes.
const syscallEventFrameSize = 8 + 6*8

// EncodeSyscallEvent serializes ev as a fixed-width big-endian frame,
// for transport across the shared-memory IPC channel (pkg/xsync) or a
// real pipe in an out-of-process deployment.
func EncodeSyscallEvent(ev SyscallEvent) []byte {
	buf := make([]byte, syscallEventFrameSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(ev.Num))
	for i, a := range ev.Args {
		off := 8 + i*8
		binary.BigEndian.PutUint64(buf[off:off+8], a)
	}
	return buf
}

// DecodeSyscallEvent parses a frame written by EncodeSyscallEvent.
func DecodeSyscallEvent(raw []byte) (SyscallEvent, error) {
	if len(raw) < syscallEventFrameSize {
		return SyscallEvent{}, ErrTruncatedFrame
	}
	var ev SyscallEvent
	ev.Num = int64(binary.BigEndian.Uint64(raw[0:8]))
	for i := range ev.Args {
		off := 8 + i*8
		ev.Args[i] = binary.BigEndian.Uint64(raw[off : off+8])
	}
	return ev, nil
}

// replyFrameSize is the flat encoded size of a ManagerReply: 1 kind
// byte, padded to an 8-byte boundary, then retval/restartable, then the
// nested-syscall fields, then the add-thread fields.
const replyFrameSize = 8 + 8 + 1 + 8 + 6*8 + 8 + 8 + 8

// EncodeReply serializes r as a fixed-width frame.
func EncodeReply(r ManagerReply) []byte {
	buf := make([]byte, replyFrameSize)
	buf[0] = byte(r.Kind)
	off := 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.Retval))
	off += 8
	if r.Restartable {
		buf[off] = 1
	}
	off++
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.NestedNum))
	off += 8
	for _, a := range r.NestedArgs {
		binary.BigEndian.PutUint64(buf[off:off+8], a)
		off += 8
	}
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.ChildStack))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(r.ChildTLS))
	off += 8
	binary.BigEndian.PutUint64(buf[off:off+8], r.CloneFlags)
	return buf
}

// DecodeReply parses a frame written by EncodeReply.
func DecodeReply(raw []byte) (ManagerReply, error) {
	if len(raw) < replyFrameSize {
		return ManagerReply{}, ErrTruncatedFrame
	}
	if raw[0] > byte(KindAddThread) {
		return ManagerReply{}, fmt.Errorf("shim: %w: kind %d", ErrMalformedFrame, raw[0])
	}
	var r ManagerReply
	r.Kind = MsgKind(raw[0])
	off := 8
	r.Retval = int64(binary.BigEndian.Uint64(raw[off : off+8]))
	off += 8
	r.Restartable = raw[off] != 0
	off++
	r.NestedNum = int64(binary.BigEndian.Uint64(raw[off : off+8]))
	off += 8
	for i := range r.NestedArgs {
		r.NestedArgs[i] = binary.BigEndian.Uint64(raw[off : off+8])
		off += 8
	}
	r.ChildStack = uintptr(binary.BigEndian.Uint64(raw[off : off+8]))
	off += 8
	r.ChildTLS = uintptr(binary.BigEndian.Uint64(raw[off : off+8]))
	off += 8
	r.CloneFlags = binary.BigEndian.Uint64(raw[off : off+8])
	return r, nil
}
