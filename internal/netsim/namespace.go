package netsim

import (
	"math/rand"
	"net/netip"
)

// minRandomPort is the start of the ephemeral port range autobind
// chooses from (spec §4.8, original_source's MIN_RANDOM_PORT).
const minRandomPort = 10000

// NetworkNamespace consolidates a host's networking objects (spec §3
// "Host... owns a network namespace with two interfaces", §4.9):
// the two interfaces every host has, an abstract Unix-socket namespace,
// and the public IP address that routed traffic to this host targets.
type NetworkNamespace struct {
	Unix *AbstractUnixNamespace

	Localhost *NetworkInterface
	Internet  *NetworkInterface

	DefaultIP netip.Addr
}

// NewNetworkNamespace returns a namespace with the conventional lo
// (127.0.0.1) and eth0 (publicIP) interfaces, both using the given
// qdisc discipline.
func NewNetworkNamespace(publicIP netip.Addr, qdisc QueueKind) *NetworkNamespace {
	return &NetworkNamespace{
		Unix:      NewAbstractUnixNamespace(),
		Localhost: NewNetworkInterface("lo", netip.MustParseAddr("127.0.0.1"), qdisc),
		Internet:  NewNetworkInterface("eth0", publicIP, qdisc),
		DefaultIP: publicIP,
	}
}

// InterfaceFor returns the interface addr routes to: loopback addresses
// resolve to Localhost; the namespace's own public IP or the
// unspecified address resolves to Internet; anything else has no
// interface here (spec §4.8, original_source's interface_borrow).
func (ns *NetworkNamespace) InterfaceFor(addr netip.Addr) *NetworkInterface {
	if addr.IsLoopback() {
		return ns.Localhost
	}
	if addr == ns.DefaultIP || addr.IsUnspecified() {
		return ns.Internet
	}
	return nil
}

// IsAddrInUse reports whether (protocol, src, dst) is already bound.
// An unspecified src address checks both interfaces (a socket bound to
// INADDR_ANY occupies the port everywhere), matching
// original_source's is_addr_in_use.
func (ns *NetworkNamespace) IsAddrInUse(protocol Protocol, src, dst netip.AddrPort) bool {
	if src.Addr().IsUnspecified() {
		return ns.Localhost.IsAddrInUse(protocol, src.Port(), dst) ||
			ns.Internet.IsAddrInUse(protocol, src.Port(), dst)
	}
	iface := ns.InterfaceFor(src.Addr())
	if iface == nil {
		return false
	}
	return iface.IsAddrInUse(protocol, src.Port(), dst)
}

// GetRandomFreePort implements autobind for inet sockets (spec §4.8):
// up to 10 uniformly random choices in [10000, 65535], falling back to
// a full linear scan starting from a random offset. A candidate port is
// free only if it is in use neither under the specific peer nor under
// the generic (unspecified-peer) tuple, so a later connect() to a new
// peer on the same local port cannot collide with an existing
// connection. Returns (0, false) if the namespace is fully exhausted.
func (ns *NetworkNamespace) GetRandomFreePort(protocol Protocol, interfaceIP netip.Addr, peer netip.AddrPort, rng *rand.Rand) (uint16, bool) {
	wildcardPeer := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

	portFree := func(port uint16) bool {
		local := netip.AddrPortFrom(interfaceIP, port)
		return !ns.IsAddrInUse(protocol, local, peer) && !ns.IsAddrInUse(protocol, local, wildcardPeer)
	}

	for i := 0; i < 10; i++ {
		port := uint16(minRandomPort + rng.Intn(65536-minRandomPort))
		if portFree(port) {
			return port, true
		}
	}

	start := uint16(minRandomPort + rng.Intn(65536-minRandomPort))
	port := start
	for {
		if portFree(port) {
			return port, true
		}
		if port == 65535 {
			port = minRandomPort
		} else {
			port++
		}
		if port == start {
			break
		}
	}

	return 0, false
}

// AssociateInterface binds s to (protocol, bindAddr.Port(), peerAddr) on
// every interface bindAddr resolves to: both interfaces when bindAddr's
// address is unspecified, otherwise the single interface addressed
// (spec §4.8, original_source's associate_interface).
func (ns *NetworkNamespace) AssociateInterface(s Socket, protocol Protocol, bindAddr, peerAddr netip.AddrPort) {
	if bindAddr.Addr().IsUnspecified() {
		ns.Localhost.Associate(protocol, bindAddr.Port(), peerAddr, s)
		ns.Internet.Associate(protocol, bindAddr.Port(), peerAddr, s)
		return
	}
	if iface := ns.InterfaceFor(bindAddr.Addr()); iface != nil {
		iface.Associate(protocol, bindAddr.Port(), peerAddr, s)
	}
}

// DisassociateInterface undoes AssociateInterface.
func (ns *NetworkNamespace) DisassociateInterface(protocol Protocol, bindAddr, peerAddr netip.AddrPort) {
	if bindAddr.Addr().IsUnspecified() {
		ns.Localhost.Disassociate(protocol, bindAddr.Port(), peerAddr)
		ns.Internet.Disassociate(protocol, bindAddr.Port(), peerAddr)
		return
	}
	if iface := ns.InterfaceFor(bindAddr.Addr()); iface != nil {
		iface.Disassociate(protocol, bindAddr.Port(), peerAddr)
	}
}
