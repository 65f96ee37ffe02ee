package clone

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
)

type recordingClient struct {
	replies []shim.ManagerReply
}

func (c *recordingClient) Send(r shim.ManagerReply) { c.replies = append(c.replies, r) }

func TestNewHandlerSendsAddThreadThenBlocksUntilResolved(t *testing.T) {
	client := &recordingClient{}
	req := Request{
		Flags:      0x1200011,
		ChildStack: memmgr.NewForeignPtr[byte](0x7fff1000),
		ChildTLS:   memmgr.NewForeignPtr[byte](0x7ffe2000),
	}
	handler, pending := NewHandler[int](client, req)

	shim.Dispatch[int](client, 0, shim.SyscallEvent{}, handler)
	if len(client.replies) != 1 || client.replies[0].Kind != shim.KindAddThread {
		t.Fatalf("got %+v, want a single KindAddThread reply", client.replies)
	}
	if client.replies[0].ChildStack != 0x7fff1000 || client.replies[0].ChildTLS != 0x7ffe2000 {
		t.Fatalf("got %+v", client.replies[0])
	}
	if client.replies[0].CloneFlags != req.Flags {
		t.Fatalf("got flags %x, want %x", client.replies[0].CloneFlags, req.Flags)
	}

	pending.Resolve(4242)

	if len(client.replies) != 2 {
		t.Fatalf("expected a second reply once resolved, got %+v", client.replies)
	}
	if client.replies[1].Kind != shim.KindComplete || client.replies[1].Retval != 4242 {
		t.Fatalf("got %+v, want KindComplete retval=4242", client.replies[1])
	}
}

func TestNewHandlerResolvedWithErrnoFailsComplete(t *testing.T) {
	client := &recordingClient{}
	handler, pending := NewHandler[int](client, Request{})

	shim.Dispatch[int](client, 0, shim.SyscallEvent{}, handler)
	pending.Resolve(-int64(unix.EAGAIN))

	if len(client.replies) != 2 {
		t.Fatalf("got %d replies, want 2", len(client.replies))
	}
	if client.replies[1].Retval != -int64(unix.EAGAIN) {
		t.Fatalf("got %d, want -EAGAIN", client.replies[1].Retval)
	}
}

func TestForkRefusedWithSharedWritableMappings(t *testing.T) {
	mm := memmgr.New()
	mm.MarkSharedWritableMapping()

	serr := Fork(mm)
	if serr == nil || serr.Kind != shim.ErrFailed || serr.Errno != unix.EINVAL {
		t.Fatalf("got %+v, want Failed(EINVAL)", serr)
	}
}

func TestForkAllowedWithoutSharedWritableMappings(t *testing.T) {
	mm := memmgr.New()

	serr := Fork(mm)
	if serr == nil || serr.Kind != shim.ErrNative {
		t.Fatalf("got %+v, want Native", serr)
	}
}
