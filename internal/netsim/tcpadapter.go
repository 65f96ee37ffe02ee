package netsim

import (
	"math/rand"
	"net/netip"

	"github.com/shadow-sim/shadow-core/internal/vfile"
	"golang.org/x/sys/unix"
)

// StateMachine is the seam a real TCP congestion-control/state-machine
// library plugs into (spec §1 non-goal: "the TCP congestion-control
// library" is an external collaborator; spec §4.8: "Uses the out-of-
// scope TCP library for the state machine"). TCPSocket mediates between
// this interface and the simulator's vfile.FileState/Packet model; it
// never implements congestion control itself.
type StateMachine interface {
	// Open starts the handshake toward remote (connect) or begins
	// listening (remote is the zero value) depending on how the caller
	// drives the machine; TCPSocket only needs Open/Close/Send/Recv/
	// flag-query, so listen/accept distinction lives in the caller.
	Open(local, remote netip.AddrPort) error
	Close() error
	// Send offers payload to the library's send buffer, returning the
	// number of bytes accepted.
	Send(payload []byte) (int, error)
	// Recv drains up to len(p) bytes the library has already received
	// and reassembled.
	Recv(p []byte) (int, error)
	// NeedsRead/NeedsWrite report the library's own readability/
	// writability flags, which TCPSocket translates into
	// vfile.StateReadable/StateWritable.
	NeedsRead() bool
	NeedsWrite() bool
	// Connected reports whether the handshake has completed.
	Connected() bool
}

// connState is TCPSocket's own view of the handshake, independent of
// the embedded StateMachine's internal state names.
type connState int

const (
	tcpUnconnected connState = iota
	tcpConnecting
	tcpConnected
	tcpListening
	tcpClosed
)

// TCPSocket adapts an out-of-scope StateMachine implementation to
// vfile.File and this package's Socket interface (spec §4.8: "provides
// read/write/listen/accept/connect/shutdown and mediates between the
// library and the file state"). It moves no segments between the state
// machine and a NetworkInterface in either direction: DeliverPacket only
// refreshes the readable/writable flags from the state machine.
type TCPSocket struct {
	vfile.StateEventSource

	sm    StateMachine
	ns    *NetworkNamespace
	iface *NetworkInterface

	local, remote netip.AddrPort
	state         connState
	status        vfile.FileStatus

	// backlog holds pending inbound connections for a listening socket
	// (spec §4.8 accept()); each entry is a StateMachine already past
	// the handshake's passive-open step.
	backlog []StateMachine
}

// NewTCPSocket returns an unconnected socket driven by sm.
func NewTCPSocket(ns *NetworkNamespace, sm StateMachine) *TCPSocket {
	t := &TCPSocket{sm: sm, ns: ns, remote: wildcardAddrPort}
	t.StateEventSource.SetState(vfile.StateActive, &vfile.CallbackQueue{})
	return t
}

// Bind assigns local, autobinding an ephemeral port if local's port is
// zero, matching UDPSocket.Bind's semantics (spec §4.8).
func (t *TCPSocket) Bind(local netip.AddrPort, rng *rand.Rand) error {
	if t.state != tcpUnconnected {
		return errAlreadyBound
	}
	addr := local.Addr()
	if !addr.IsValid() {
		addr = netip.IPv4Unspecified()
	}
	port := local.Port()
	if port == 0 {
		p, ok := t.ns.GetRandomFreePort(ProtocolTCP, addr, wildcardAddrPort, rng)
		if !ok {
			return errNoFreePort
		}
		port = p
	} else if t.ns.IsAddrInUse(ProtocolTCP, netip.AddrPortFrom(addr, port), wildcardAddrPort) {
		return errAddrInUse
	}
	t.local = netip.AddrPortFrom(addr, port)
	return nil
}

// Listen marks the socket as listening; accept() later drains backlog.
// Per spec §4.17's Non-goals this performs no handshake bookkeeping of
// its own beyond the state transition — that belongs to sm.
func (t *TCPSocket) Listen() error {
	if t.local.Port() == 0 {
		return unix.EINVAL
	}
	t.ns.AssociateInterface(t, ProtocolTCP, t.local, wildcardAddrPort)
	t.state = tcpListening
	return nil
}

// Connect starts an active open toward remote. Non-blocking sockets
// return EINPROGRESS immediately; blocking sockets are expected to be
// driven through a syscallcond.Condition on StateWritable by the
// caller (internal/syshandlers), not by this method blocking itself.
func (t *TCPSocket) Connect(remote netip.AddrPort, rng *rand.Rand) error {
	if t.local.Port() == 0 {
		if err := t.Bind(wildcardAddrPort, rng); err != nil {
			return err
		}
	}
	if err := t.sm.Open(t.local, remote); err != nil {
		return err
	}
	t.remote = remote
	t.ns.AssociateInterface(t, ProtocolTCP, t.local, t.remote)
	t.state = tcpConnecting
	t.refreshFlags()
	if t.status.Has(vfile.StatusNonblock) {
		return unix.EINPROGRESS
	}
	return nil
}

// Accept pops one completed passive-open connection from the backlog,
// wrapping it in a fresh TCPSocket, or reports would-block.
func (t *TCPSocket) Accept() (*TCPSocket, error) {
	if len(t.backlog) == 0 {
		if t.status.Has(vfile.StatusNonblock) {
			return nil, errEWouldBlock
		}
		return nil, vfile.ErrWouldBlockNoData
	}
	sm := t.backlog[0]
	t.backlog = t.backlog[1:]
	child := &TCPSocket{sm: sm, ns: t.ns, state: tcpConnected}
	child.StateEventSource.SetState(vfile.StateActive, &vfile.CallbackQueue{})
	child.refreshFlags()
	return child, nil
}

// Shutdown is a placeholder hook for half-close; full-duplex half-close
// translation into the library's own shutdown call is left to whatever
// concrete StateMachine is wired in, since this module does not
// implement one (spec §1 non-goal).
func (t *TCPSocket) Shutdown() error {
	return t.sm.Close()
}

// refreshFlags mirrors the state machine's NeedsRead/NeedsWrite into
// vfile.StateReadable/StateWritable (spec §4.8: "translates
// (needs-to-read, needs-to-write) library flags into
// FileState::READABLE | WRITABLE"), and promotes Connecting to
// Connected once the handshake finishes.
func (t *TCPSocket) refreshFlags() {
	if t.state == tcpConnecting && t.sm.Connected() {
		t.state = tcpConnected
	}
	set, clear := vfile.FileState(0), vfile.FileState(0)
	if t.sm.NeedsRead() {
		set |= vfile.StateReadable
	} else {
		clear |= vfile.StateReadable
	}
	if t.sm.NeedsWrite() {
		set |= vfile.StateWritable
	} else {
		clear |= vfile.StateWritable
	}
	t.StateEventSource.Adjust(set, clear, &vfile.CallbackQueue{})
}

// DeliverPacket implements Socket: an inbound segment is hypothetically
// fed to the state machine's reassembly buffer. Since this module's
// StateMachine has no segment-level ingestion hook of its own (that
// belongs to the library), concrete wiring is left to whatever adapts a
// real library in; this records the arrival for flag refresh only.
func (t *TCPSocket) DeliverPacket(p *Packet) {
	t.refreshFlags()
}

func (t *TCPSocket) Readv(iov [][]byte, cbq *vfile.CallbackQueue) (int, error) {
	total := 0
	for _, b := range iov {
		n, err := t.sm.Recv(b)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			if total == 0 {
				if t.status.Has(vfile.StatusNonblock) {
					return 0, errEWouldBlock
				}
				return 0, vfile.ErrWouldBlockNoData
			}
			break
		}
	}
	t.refreshFlags()
	return total, nil
}

func (t *TCPSocket) Writev(iov [][]byte, cbq *vfile.CallbackQueue) (int, error) {
	total := 0
	for _, b := range iov {
		n, err := t.sm.Send(b)
		total += n
		if err != nil {
			return total, err
		}
		if n < len(b) {
			break
		}
	}
	t.refreshFlags()
	if total == 0 && len(iov) > 0 && len(iov[0]) > 0 {
		if t.status.Has(vfile.StatusNonblock) {
			return 0, errEWouldBlock
		}
		return 0, vfile.ErrWouldBlockNoSpace
	}
	return total, nil
}

func (t *TCPSocket) Ioctl(req uintptr, arg []byte, cbq *vfile.CallbackQueue) error {
	return unix.ENOTTY
}

func (t *TCPSocket) Close(cbq *vfile.CallbackQueue) error {
	if t.state == tcpClosed {
		return nil
	}
	t.state = tcpClosed
	if t.local.Port() != 0 {
		t.ns.DisassociateInterface(ProtocolTCP, t.local, t.remote)
	}
	err := t.sm.Close()
	t.StateEventSource.SetState(t.StateEventSource.State()|vfile.StateClosed, cbq)
	return err
}

func (t *TCPSocket) Status() vfile.FileStatus     { return t.status }
func (t *TCPSocket) SetStatus(s vfile.FileStatus) { t.status = s }
