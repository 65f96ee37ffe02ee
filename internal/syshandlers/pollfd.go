package syshandlers

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/syscallcond"
	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// timeFromNanos and intervalFromNanos translate the raw nanosecond
// register values timerfd_settime carries into this module's typed
// clock values. A negative/zero "at" disarms the timer, matching
// TimerFD.SetTime's EmulatedMax convention.
func timeFromNanos(n int64) clock.EmulatedTime {
	if n <= 0 {
		return clock.EmulatedMax
	}
	return clock.EmulatedTime(n)
}

func intervalFromNanos(n int64) clock.SimulationTime {
	return clock.FromNanos(n)
}

// Pipe2 implements pipe2(2): args[0]=pipefd addr (two ints), args[1]=flags.
// The two new fds are installed directly in the descriptor table; the
// guest-visible int[2] write-back is the caller's responsibility once
// internal/clone wires in the ABI-level argument marshaling this
// representative handler set intentionally leaves out.
func Pipe2(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError, [2]int32) {
	flags := uint32(ev.Args[1])
	r, w := vfile.NewPipePair(65536)
	if flags&unix.O_NONBLOCK != 0 {
		r.SetStatus(vfile.StatusNonblock)
		w.SetStatus(vfile.StatusNonblock)
	}
	rd := &vfile.Descriptor{File: r}
	wd := &vfile.Descriptor{File: w}
	if flags&unix.O_CLOEXEC != 0 {
		rd.Flags |= vfile.DescCloexec
		wd.Flags |= vfile.DescCloexec
	}
	rfd := c.Descriptors.Insert(rd)
	wfd := c.Descriptors.Insert(wd)
	return 0, nil, [2]int32{rfd, wfd}
}

// EpollCreate1 implements epoll_create1(2): args[0]=flags (only
// EPOLL_CLOEXEC is meaningful).
func EpollCreate1(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	flags := uint32(ev.Args[0])
	ep := vfile.NewEpoll()
	d := &vfile.Descriptor{File: ep}
	if flags&unix.EPOLL_CLOEXEC != 0 {
		d.Flags |= vfile.DescCloexec
	}
	fd := c.Descriptors.Insert(d)
	return shim.SyscallReg(fd), nil
}

// EpollCtl implements epoll_ctl(2): args[0]=epfd, args[1]=op,
// args[2]=fd, args[3]=requested events, args[4]=user data.
func EpollCtl(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	epfd := int32(ev.Args[0])
	op := int(ev.Args[1])
	fd := int32(ev.Args[2])
	requested := uint32(ev.Args[3])
	data := ev.Args[4]

	epDesc := c.Descriptors.Get(epfd)
	if epDesc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}
	ep, ok := epDesc.File.(*vfile.Epoll)
	if !ok {
		return 0, shim.Failed(unix.EINVAL, false)
	}
	targetDesc := c.Descriptors.Get(fd)
	if targetDesc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}

	var err error
	switch op {
	case unix.EPOLL_CTL_ADD:
		err = ep.Add(fd, targetDesc.File, requested, data)
	case unix.EPOLL_CTL_MOD:
		err = ep.Mod(fd, requested, data)
	case unix.EPOLL_CTL_DEL:
		err = ep.Del(fd)
	default:
		err = unix.EINVAL
	}
	if err != nil {
		return 0, shim.Failed(toErrno(err), false)
	}
	return 0, nil
}

// EpollWait implements epoll_wait(2): args[0]=epfd, args[1]=maxevents.
// Blocks (without a timeout arm, which the caller layers on separately
// via args[2]'s millisecond timeout if >= 0) until at least one entry
// is ready.
func EpollWait(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	epfd := int32(ev.Args[0])
	maxEvents := int(ev.Args[1])

	epDesc := c.Descriptors.Get(epfd)
	if epDesc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}
	ep, ok := epDesc.File.(*vfile.Epoll)
	if !ok {
		return 0, shim.Failed(unix.EINVAL, false)
	}
	if ep.ReadyLen() == 0 {
		cond := syscallcond.New(nil)
		cond.WaitFile(ep, vfile.StateReadable)
		return 0, shim.Blocked(cond, false)
	}
	events := ep.Wait(maxEvents)
	return shim.SyscallReg(len(events)), nil
}

// EventFD2 implements eventfd2(2): args[0]=initval, args[1]=flags.
func EventFD2(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	initval := ev.Args[0]
	flags := uint32(ev.Args[1])
	efd := vfile.NewEventFD(initval, flags&unix.EFD_SEMAPHORE != 0)
	if flags&unix.EFD_NONBLOCK != 0 {
		efd.SetStatus(vfile.StatusNonblock)
	}
	d := &vfile.Descriptor{File: efd}
	if flags&unix.EFD_CLOEXEC != 0 {
		d.Flags |= vfile.DescCloexec
	}
	fd := c.Descriptors.Insert(d)
	return shim.SyscallReg(fd), nil
}

// TimerFDCreate implements timerfd_create(2): args[0]=clockid (ignored;
// every clock maps onto the same emulated timeline), args[1]=flags.
func TimerFDCreate(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	flags := uint32(ev.Args[1])
	tfd := vfile.NewTimerFD(c.Scheduler)
	if flags&unix.TFD_NONBLOCK != 0 {
		tfd.SetStatus(vfile.StatusNonblock)
	}
	d := &vfile.Descriptor{File: tfd}
	if flags&unix.TFD_CLOEXEC != 0 {
		d.Flags |= vfile.DescCloexec
	}
	fd := c.Descriptors.Insert(d)
	return shim.SyscallReg(fd), nil
}

// TimerFDSettime implements timerfd_settime(2): args[0]=fd,
// args[1]=initial expiration (nanoseconds from epoch), args[2]=interval
// (nanoseconds).
func TimerFDSettime(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	fd := int32(ev.Args[0])
	at := int64(ev.Args[1])
	interval := int64(ev.Args[2])

	desc := c.Descriptors.Get(fd)
	if desc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}
	tfd, ok := desc.File.(*vfile.TimerFD)
	if !ok {
		return 0, shim.Failed(unix.EINVAL, false)
	}
	tfd.SetTime(timeFromNanos(at), intervalFromNanos(interval))
	return 0, nil
}

// TimerFDGettime implements timerfd_gettime(2): args[0]=fd. The
// (remaining, interval) pair is returned directly as register values in
// nanoseconds rather than via a struct itimerspec write-back, for the
// same ABI-marshaling reason documented on Pipe2.
func TimerFDGettime(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError, int64, int64) {
	fd := int32(ev.Args[0])
	desc := c.Descriptors.Get(fd)
	if desc == nil {
		return 0, shim.Failed(unix.EBADF, false), 0, 0
	}
	tfd, ok := desc.File.(*vfile.TimerFD)
	if !ok {
		return 0, shim.Failed(unix.EINVAL, false), 0, 0
	}
	remaining, interval := tfd.GetTime()
	return 0, nil, int64(remaining), int64(interval)
}
