package syshandlers

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/syscallcond"
	"github.com/shadow-sim/shadow-core/internal/vfile"
)

// Read implements read(2): args[0]=fd, args[1]=buf addr, args[2]=count.
func Read(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	fd := int32(ev.Args[0])
	addr := memmgr.NewForeignPtr[byte](ev.Args[1])
	count := int(ev.Args[2])

	desc := c.Descriptors.Get(fd)
	if desc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}

	out := make([]byte, count)
	n, err := desc.File.Readv([][]byte{out}, c.CBQ)
	if vfile.IsWouldBlock(err) {
		cond := syscallcond.New(nil)
		cond.WaitFile(desc.File, vfile.StateReadable)
		return 0, shim.Blocked(cond, true)
	}
	if err != nil {
		return 0, shim.Failed(toErrno(err), false)
	}
	if n > 0 {
		if _, werr := c.Memory.Write(c.Tid, addr, out[:n]); werr != nil {
			return 0, shim.Failed(unix.EFAULT, false)
		}
	}
	return shim.SyscallReg(n), nil
}

// Write implements write(2): args[0]=fd, args[1]=buf addr, args[2]=count.
func Write(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	fd := int32(ev.Args[0])
	addr := memmgr.NewForeignPtr[byte](ev.Args[1])
	count := int(ev.Args[2])

	desc := c.Descriptors.Get(fd)
	if desc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}

	in, rerr := readWriteIovecs(c, addr, count)
	if rerr != nil {
		return 0, shim.Failed(unix.EFAULT, false)
	}

	n, err := desc.File.Writev([][]byte{in}, c.CBQ)
	if vfile.IsWouldBlock(err) {
		cond := syscallcond.New(nil)
		cond.WaitFile(desc.File, vfile.StateWritable)
		return 0, shim.Blocked(cond, true)
	}
	if err != nil {
		return 0, shim.Failed(toErrno(err), false)
	}
	return shim.SyscallReg(n), nil
}

// Close implements close(2): args[0]=fd.
func Close(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	fd := int32(ev.Args[0])
	if err := c.Descriptors.Close(fd, c.CBQ); err != nil {
		return 0, shim.Failed(toErrno(err), false)
	}
	return 0, nil
}

// Dup3 implements dup3(2): args[0]=oldfd, args[1]=newfd, args[2]=flags.
// oldfd==newfd is rejected with EINVAL whatever the flags, matching the
// real syscall's documented behavior.
func Dup3(c *Context, ev shim.SyscallEvent) (shim.SyscallReg, *shim.SyscallError) {
	oldfd := int32(ev.Args[0])
	newfd := int32(ev.Args[1])
	flags := uint32(ev.Args[2])
	if oldfd == newfd {
		return 0, shim.Failed(unix.EINVAL, false)
	}
	desc := c.Descriptors.Get(oldfd)
	if desc == nil {
		return 0, shim.Failed(unix.EBADF, false)
	}
	dup := &vfile.Descriptor{File: desc.File, Flags: desc.Flags}
	if flags&unix.O_CLOEXEC != 0 {
		dup.Flags |= vfile.DescCloexec
	}
	if err := c.Descriptors.InsertAt(newfd, dup, c.CBQ); err != nil {
		return 0, shim.Failed(toErrno(err), false)
	}
	return shim.SyscallReg(newfd), nil
}

func toErrno(err error) unix.Errno {
	if errno, ok := err.(unix.Errno); ok {
		return errno
	}
	return unix.EIO
}
