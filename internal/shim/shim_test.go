package shim

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/syscallcond"
	"github.com/shadow-sim/shadow-core/internal/vfile"
)

func TestEncodeDecodeSyscallEventRoundTrip(t *testing.T) {
	ev := SyscallEvent{Num: 0, Args: [6]SyscallReg{1, 2, 3, 4, 5, 6}}
	raw := EncodeSyscallEvent(ev)
	got, err := DecodeSyscallEvent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != ev {
		t.Fatalf("got %+v, want %+v", got, ev)
	}
}

func TestDecodeSyscallEventTruncated(t *testing.T) {
	if _, err := DecodeSyscallEvent([]byte{1, 2, 3}); err != ErrTruncatedFrame {
		t.Fatalf("got %v, want ErrTruncatedFrame", err)
	}
}

func TestEncodeDecodeReplyRoundTrip(t *testing.T) {
	r := ManagerReply{
		Kind:        KindComplete,
		Retval:      -int64(unix.EAGAIN),
		Restartable: true,
	}
	raw := EncodeReply(r)
	got, err := DecodeReply(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got != r {
		t.Fatalf("got %+v, want %+v", got, r)
	}
}

func TestDecodeReplyRejectsUnknownKind(t *testing.T) {
	raw := EncodeReply(ManagerReply{Kind: KindAddThread})
	raw[0] = 99
	if _, err := DecodeReply(raw); err == nil {
		t.Fatal("expected error on unknown kind")
	}
}

type recordingClient struct {
	replies []ManagerReply
}

func (c *recordingClient) Send(r ManagerReply) { c.replies = append(c.replies, r) }

func TestDispatchSuccessSendsComplete(t *testing.T) {
	client := &recordingClient{}
	handler := func(ctx int, ev SyscallEvent) (SyscallReg, *SyscallError) {
		return 42, nil
	}
	Dispatch[int](client, 0, SyscallEvent{}, handler)
	if len(client.replies) != 1 || client.replies[0].Retval != 42 {
		t.Fatalf("got %+v", client.replies)
	}
}

func TestDispatchFailedSendsNegativeErrno(t *testing.T) {
	client := &recordingClient{}
	handler := func(ctx int, ev SyscallEvent) (SyscallReg, *SyscallError) {
		return 0, Failed(unix.EBADF, false)
	}
	Dispatch[int](client, 0, SyscallEvent{}, handler)
	if client.replies[0].Retval != -int64(unix.EBADF) {
		t.Fatalf("got %d, want -EBADF", client.replies[0].Retval)
	}
}

func TestDispatchNativeSendsDoNative(t *testing.T) {
	client := &recordingClient{}
	handler := func(ctx int, ev SyscallEvent) (SyscallReg, *SyscallError) {
		return 0, Native()
	}
	Dispatch[int](client, 0, SyscallEvent{}, handler)
	if client.replies[0].Kind != KindDoNative {
		t.Fatalf("got %v, want KindDoNative", client.replies[0].Kind)
	}
}

func TestDispatchBlockedResumesOnFire(t *testing.T) {
	r, w := vfile.NewPipePair(4096)
	defer r.Close(&vfile.CallbackQueue{})
	defer w.Close(&vfile.CallbackQueue{})

	client := &recordingClient{}
	calls := 0
	var handler Handler[int]
	handler = func(ctx int, ev SyscallEvent) (SyscallReg, *SyscallError) {
		calls++
		if calls == 1 {
			cond := syscallcond.New(nil)
			cond.WaitFile(r, vfile.StateReadable)
			return 0, Blocked(cond, false)
		}
		return 5, nil
	}
	Dispatch[int](client, 0, SyscallEvent{}, handler)
	if len(client.replies) != 0 {
		t.Fatalf("expected no reply while blocked, got %+v", client.replies)
	}

	cbq := &vfile.CallbackQueue{}
	w.Writev([][]byte{[]byte("x")}, cbq)
	cbq.Drain()

	if len(client.replies) != 1 || client.replies[0].Retval != 5 {
		t.Fatalf("got %+v", client.replies)
	}
	if calls != 2 {
		t.Fatalf("expected handler to rerun once, calls=%d", calls)
	}
}

func TestDispatchBlockedPreemptedBySignalSendsEINTR(t *testing.T) {
	client := &recordingClient{}
	var cond *syscallcond.Condition
	handler := func(ctx int, ev SyscallEvent) (SyscallReg, *SyscallError) {
		cond = syscallcond.New(nil)
		return 0, Blocked(cond, true)
	}
	Dispatch[int](client, 0, SyscallEvent{}, handler)
	cond.Preempt()

	if len(client.replies) != 1 {
		t.Fatalf("got %d replies, want 1", len(client.replies))
	}
	if client.replies[0].Retval != -int64(unix.EINTR) {
		t.Fatalf("got %d, want -EINTR", client.replies[0].Retval)
	}
	if !client.replies[0].Restartable {
		t.Fatal("expected Restartable to carry through")
	}
}

func TestSendAddThreadAndNestedSyscall(t *testing.T) {
	client := &recordingClient{}
	SendAddThread(client, 0x7fff0000, 0x7ffe0000, 0x1200011)
	if client.replies[0].Kind != KindAddThread || client.replies[0].ChildStack != 0x7fff0000 {
		t.Fatalf("got %+v", client.replies[0])
	}

	SendNestedSyscall(client, 0, [6]SyscallReg{1, 2, 3, 0, 0, 0})
	if client.replies[1].Kind != KindNestedSyscall || client.replies[1].NestedNum != 0 {
		t.Fatalf("got %+v", client.replies[1])
	}
}
