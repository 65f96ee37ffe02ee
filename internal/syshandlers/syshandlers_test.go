package syshandlers

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/vfile"
)

func newTestContext() *Context {
	return &Context{
		Tid:         0, // unused: no real memmgr transfer happens in these tests
		Descriptors: vfile.NewTable(),
		Memory:      memmgr.New(),
		CBQ:         &vfile.CallbackQueue{},
	}
}

func TestCloseUnknownFDReturnsEBADF(t *testing.T) {
	c := newTestContext()
	_, serr := Close(c, shim.SyscallEvent{Args: [6]uint64{99}})
	if serr == nil || serr.Kind != shim.ErrFailed || serr.Errno != unix.EBADF {
		t.Fatalf("got %+v, want Failed(EBADF)", serr)
	}
}

func TestCloseThenCloseAgainIsEBADF(t *testing.T) {
	c := newTestContext()
	r, w := vfile.NewPipePair(4096)
	fd := c.Descriptors.Insert(&vfile.Descriptor{File: r})
	_ = w

	_, serr := Close(c, shim.SyscallEvent{Args: [6]uint64{uint64(fd)}})
	if serr != nil {
		t.Fatalf("first close: %+v", serr)
	}
	_, serr = Close(c, shim.SyscallEvent{Args: [6]uint64{uint64(fd)}})
	if serr == nil || serr.Errno != unix.EBADF {
		t.Fatalf("second close: got %+v, want EBADF", serr)
	}
}

func TestDup3RejectsSameFD(t *testing.T) {
	c := newTestContext()
	r, _ := vfile.NewPipePair(4096)
	fd := c.Descriptors.Insert(&vfile.Descriptor{File: r})
	_, serr := Dup3(c, shim.SyscallEvent{Args: [6]uint64{uint64(fd), uint64(fd), 0}})
	if serr == nil || serr.Errno != unix.EINVAL {
		t.Fatalf("got %+v, want EINVAL", serr)
	}
}

func TestDup3InstallsAtRequestedFD(t *testing.T) {
	c := newTestContext()
	r, _ := vfile.NewPipePair(4096)
	oldfd := c.Descriptors.Insert(&vfile.Descriptor{File: r})
	newfd := oldfd + 50

	reg, serr := Dup3(c, shim.SyscallEvent{Args: [6]uint64{uint64(oldfd), uint64(newfd), 0}})
	if serr != nil {
		t.Fatalf("dup3: %+v", serr)
	}
	if int32(reg) != newfd {
		t.Fatalf("got %d, want %d", reg, newfd)
	}
	if c.Descriptors.Get(newfd).File != r {
		t.Fatal("new fd does not point at the duplicated file")
	}
}

func TestEpollCreateCtlWaitRoundTrip(t *testing.T) {
	c := newTestContext()
	r, w := vfile.NewPipePair(4096)
	rfd := c.Descriptors.Insert(&vfile.Descriptor{File: r})

	reg, serr := EpollCreate1(c, shim.SyscallEvent{})
	if serr != nil {
		t.Fatalf("epoll_create1: %+v", serr)
	}
	epfd := int32(reg)

	_, serr = EpollCtl(c, shim.SyscallEvent{Args: [6]uint64{
		uint64(epfd), uint64(unix.EPOLL_CTL_ADD), uint64(rfd), uint64(vfile.EpollIn), 7,
	}})
	if serr != nil {
		t.Fatalf("epoll_ctl add: %+v", serr)
	}

	// Nothing written yet: epoll_wait should block.
	_, serr = EpollWait(c, shim.SyscallEvent{Args: [6]uint64{uint64(epfd), 10}})
	if serr == nil || serr.Kind != shim.ErrBlocked {
		t.Fatalf("got %+v, want Blocked", serr)
	}

	cbq := &vfile.CallbackQueue{}
	w.Writev([][]byte{[]byte("x")}, cbq)
	cbq.Drain()

	reg, serr = EpollWait(c, shim.SyscallEvent{Args: [6]uint64{uint64(epfd), 10}})
	if serr != nil {
		t.Fatalf("epoll_wait: %+v", serr)
	}
	if reg != 1 {
		t.Fatalf("got %d ready events, want 1", reg)
	}
}

func TestEventFD2NonzeroInitvalIsReadable(t *testing.T) {
	c := newTestContext()
	reg, serr := EventFD2(c, shim.SyscallEvent{Args: [6]uint64{5, uint64(unix.EFD_NONBLOCK)}})
	if serr != nil {
		t.Fatalf("eventfd2: %+v", serr)
	}
	fd := int32(reg)
	desc := c.Descriptors.Get(fd)
	if desc == nil {
		t.Fatal("expected descriptor installed")
	}
	if !desc.File.State().Has(vfile.StateReadable) {
		t.Fatal("expected eventfd with nonzero initval to be readable")
	}
}
