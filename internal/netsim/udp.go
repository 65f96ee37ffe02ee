package netsim

import (
	"math/rand"
	"net/netip"

	"github.com/shadow-sim/shadow-core/internal/vfile"
)

var wildcardAddrPort = netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

// UDPSocket is a datagram socket backed by a per-socket receive buffer
// of length-framed datagrams (spec §4.8 "UDP. A per-socket receive
// buffer of datagrams; sendmsg/recvmsg with message boundaries").
type UDPSocket struct {
	recv   *vfile.SharedBuffer
	status vfile.FileStatus

	ns    *NetworkNamespace
	local netip.AddrPort
	// remote is the connected peer, or wildcardAddrPort if unconnected.
	remote netip.AddrPort
	bound  bool
	closed bool
}

// NewUDPSocket returns an unbound, unconnected UDP socket whose receive
// buffer can hold recvBufCap bytes of datagram payload.
func NewUDPSocket(ns *NetworkNamespace, recvBufCap int) *UDPSocket {
	recv := vfile.NewSharedBuffer(recvBufCap)
	recv.SetFramed(true)
	cbq := &vfile.CallbackQueue{}
	recv.AddWriter(cbq) // the network is always a willing writer
	cbq.Drain()
	return &UDPSocket{recv: recv, ns: ns, remote: wildcardAddrPort}
}

// Bind assigns local to the socket: an explicit non-zero port must be
// free or Bind fails with EADDRINUSE-equivalent; a zero port triggers
// autobind via the namespace's ephemeral port search (spec §4.8).
func (u *UDPSocket) Bind(local netip.AddrPort, rng *rand.Rand) error {
	if u.bound {
		return errAlreadyBound
	}
	addr := local.Addr()
	if !addr.IsValid() {
		addr = netip.IPv4Unspecified()
	}

	port := local.Port()
	if port == 0 {
		p, ok := u.ns.GetRandomFreePort(ProtocolUDP, addr, wildcardAddrPort, rng)
		if !ok {
			return errNoFreePort
		}
		port = p
	} else if u.ns.IsAddrInUse(ProtocolUDP, netip.AddrPortFrom(addr, port), wildcardAddrPort) {
		return errAddrInUse
	}

	u.local = netip.AddrPortFrom(addr, port)
	u.ns.AssociateInterface(u, ProtocolUDP, u.local, wildcardAddrPort)
	u.bound = true
	return nil
}

// Connect fixes the socket's peer, re-associating its interface binding
// under the specific (protocol, local, remote) tuple so later datagrams
// from other peers no longer demux here.
func (u *UDPSocket) Connect(remote netip.AddrPort, rng *rand.Rand) error {
	if !u.bound {
		if err := u.Bind(wildcardAddrPort, rng); err != nil {
			return err
		}
	} else {
		u.ns.DisassociateInterface(ProtocolUDP, u.local, u.remote)
	}
	u.remote = remote
	u.ns.AssociateInterface(u, ProtocolUDP, u.local, u.remote)
	return nil
}

// SendTo enqueues a datagram to dst (or to the connected peer if
// already Connect-ed and dst is the zero value) on the interface that
// owns the socket's local address, auto-binding first if necessary.
func (u *UDPSocket) SendTo(payload []byte, dst netip.AddrPort, rng *rand.Rand) error {
	if !u.bound {
		if err := u.Bind(wildcardAddrPort, rng); err != nil {
			return err
		}
	}
	if !dst.IsValid() {
		dst = u.remote
	}
	iface := u.ns.InterfaceFor(u.local.Addr())
	if iface == nil {
		iface = u.ns.Internet
	}
	src := u.local
	if src.Addr().IsUnspecified() {
		src = netip.AddrPortFrom(iface.Addr, src.Port())
	}
	buf := append([]byte(nil), payload...)
	p := NewPacket(ProtocolUDP, src, dst, buf)
	return iface.Enqueue(p, 0)
}

// DeliverPacket implements Socket: an inbound datagram is appended to
// the receive buffer, one frame per packet.
func (u *UDPSocket) DeliverPacket(p *Packet) {
	if u.closed {
		return
	}
	cbq := &vfile.CallbackQueue{}
	u.recv.Write(p.Payload, len(p.Payload))
	u.recv.RefreshReadWrite(cbq)
	cbq.Drain()
}

// RecvFrom pops the oldest buffered datagram, reporting would-block via
// vfile.IsWouldBlock when the buffer is empty.
func (u *UDPSocket) RecvFrom(p []byte) (int, error) {
	if u.recv.Len() == 0 {
		if u.status.Has(vfile.StatusNonblock) {
			return 0, errEWouldBlock
		}
		return 0, errNoData
	}
	n := u.recv.Read(p)
	cbq := &vfile.CallbackQueue{}
	u.recv.RefreshReadWrite(cbq)
	cbq.Drain()
	return n, nil
}

func (u *UDPSocket) State() vfile.FileState  { return u.recv.State() }
func (u *UDPSocket) Status() vfile.FileStatus { return u.status }
func (u *UDPSocket) SetStatus(s vfile.FileStatus) { u.status = s }

func (u *UDPSocket) AddListener(filter vfile.FileState, notify func(newState, changed vfile.FileState, cbq *vfile.CallbackQueue)) vfile.Handle {
	return u.recv.AddListener(filter, notify)
}

func (u *UDPSocket) Readv(iov [][]byte, cbq *vfile.CallbackQueue) (int, error) {
	total := 0
	for _, b := range iov {
		n, err := u.RecvFrom(b)
		total += n
		if err != nil || n < len(b) {
			return total, err
		}
	}
	return total, nil
}

// Writev implements vfile.File for an already-connected socket; an
// unconnected socket has no implicit destination and must use SendTo.
func (u *UDPSocket) Writev(iov [][]byte, cbq *vfile.CallbackQueue) (int, error) {
	if !u.bound || u.remote == wildcardAddrPort {
		return 0, errDestAddrRequired
	}
	total := 0
	for _, b := range iov {
		if err := u.SendTo(b, u.remote, nil); err != nil {
			return total, err
		}
		total += len(b)
	}
	return total, nil
}

func (u *UDPSocket) Ioctl(req uintptr, arg []byte, cbq *vfile.CallbackQueue) error {
	return errListenNotSupported
}

func (u *UDPSocket) Close(cbq *vfile.CallbackQueue) error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.bound {
		u.ns.DisassociateInterface(ProtocolUDP, u.local, u.remote)
	}
	u.recv.SetState(u.recv.State()|vfile.StateClosed, cbq)
	return nil
}
