package netsim

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/internal/vfile"
)

// Sentinel errors returned by the socket types in this package,
// matching the errno the syscall handler should translate these into
// (spec §4.8's socket-layer behavior). errNoData reuses vfile's
// exported would-block sentinel so vfile.IsWouldBlock recognizes it the
// same way it would for a File implemented inside that package.
var (
	errAlreadyBound       = unix.EINVAL
	errNoFreePort         = unix.EADDRNOTAVAIL
	errAddrInUse          = unix.EADDRINUSE
	errListenNotSupported = unix.EOPNOTSUPP
	errDestAddrRequired   = unix.EDESTADDRREQ
	errEWouldBlock        = unix.EWOULDBLOCK
	errNoData       error = vfile.ErrWouldBlockNoData
)
