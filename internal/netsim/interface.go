package netsim

import "net/netip"

// PacketSink observes every packet that crosses a NetworkInterface, in
// either direction (spec §4.16 "an optional pcap sink"). The contract a
// real pcap writer must satisfy is documented by internal/pcapshim;
// NullSink is the only implementation this module needs for its own
// tests.
type PacketSink interface {
	Observe(p *Packet, outbound bool)
}

// NullSink discards every packet. The zero value is ready to use.
type NullSink struct{}

func (NullSink) Observe(*Packet, bool) {}

// Socket is the minimal contract a NetworkInterface needs to demultiplex
// an inbound packet to its owner (spec §4.8 "inet sockets"); the
// concrete UDP/TCP-adapter socket types implement this in addition to
// vfile.File.
type Socket interface {
	DeliverPacket(p *Packet)
}

type assocKey struct {
	protocol  Protocol
	localPort uint16
	remote    netip.AddrPort
}

// NetworkInterface is a (ipv4 address, name) pair owning a demux table
// from (protocol, local port, remote addr:port) to socket, a qdisc send
// queue, and an optional pcap sink (spec §3 "Network interface",
// original_source's host/network/interface.rs).
type NetworkInterface struct {
	Name string
	Addr netip.Addr

	sendQueue    *NetworkQueue[*Packet]
	associations map[assocKey]Socket
	sink         PacketSink
	onEnqueue    func()
}

// NewNetworkInterface returns an interface with an empty send queue
// using the given qdisc discipline and no pcap sink.
func NewNetworkInterface(name string, addr netip.Addr, qdisc QueueKind) *NetworkInterface {
	return &NetworkInterface{
		Name:         name,
		Addr:         addr,
		sendQueue:    NewNetworkQueue[*Packet](qdisc),
		associations: make(map[assocKey]Socket),
		sink:         NullSink{},
	}
}

// SetSink installs the interface's pcap observer; pass NullSink{} to
// disable capture.
func (n *NetworkInterface) SetSink(sink PacketSink) { n.sink = sink }

// SetOnEnqueue installs the callback Enqueue invokes after a successful
// push, letting whatever owns this interface's Relay (internal/host)
// wake it without this package knowing anything about hosts or relays.
func (n *NetworkInterface) SetOnEnqueue(fn func()) { n.onEnqueue = fn }

// Enqueue places an outbound packet on the send queue for the relay to
// pop, per the caller-supplied qdisc priority (ignored under FIFO).
// Duplicate enqueue of the same *Packet is rejected, matching
// NetworkQueue's membership rule.
func (n *NetworkInterface) Enqueue(p *Packet, priority uint64) error {
	if err := n.sendQueue.TryPush(p, priority); err != nil {
		return err
	}
	n.sink.Observe(p, true)
	if n.onEnqueue != nil {
		n.onEnqueue()
	}
	return nil
}

// Pop removes the next outbound packet per the qdisc's discipline, for
// the relay to forward.
func (n *NetworkInterface) Pop() (*Packet, bool) {
	return n.sendQueue.Pop()
}

// Len reports the number of packets waiting to be forwarded.
func (n *NetworkInterface) Len() int { return n.sendQueue.Len() }

// Associate binds a socket to (protocol, localPort, remote) on this
// interface, so inbound packets matching that tuple demux to it (spec
// §4.8, original_source's associate_interface). remote may carry the
// unspecified address/port to match any peer (a listening or
// unconnected socket).
func (n *NetworkInterface) Associate(protocol Protocol, localPort uint16, remote netip.AddrPort, s Socket) {
	n.associations[assocKey{protocol, localPort, remote}] = s
}

// Disassociate removes the (protocol, localPort, remote) binding.
func (n *NetworkInterface) Disassociate(protocol Protocol, localPort uint16, remote netip.AddrPort) {
	delete(n.associations, assocKey{protocol, localPort, remote})
}

// IsAddrInUse reports whether a socket is already bound to (protocol,
// localPort, remote) on this interface, matching
// original_source's is_addr_in_use.
func (n *NetworkInterface) IsAddrInUse(protocol Protocol, localPort uint16, remote netip.AddrPort) bool {
	_, ok := n.associations[assocKey{protocol, localPort, remote}]
	return ok
}

// Deliver demuxes an inbound packet to its bound socket: first an exact
// (protocol, dstPort, srcAddr:srcPort) match, then a wildcard-remote
// match for listening/unconnected sockets. Packets matching nothing are
// dropped (no ICMP port-unreachable modeling, per spec's non-goals).
func (n *NetworkInterface) Deliver(p *Packet) {
	n.sink.Observe(p, false)
	localPort := p.Dst.Port()
	if s, ok := n.associations[assocKey{p.Protocol, localPort, p.Src}]; ok {
		s.DeliverPacket(p)
		return
	}
	wildcard := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	if s, ok := n.associations[assocKey{p.Protocol, localPort, wildcard}]; ok {
		s.DeliverPacket(p)
		return
	}
}
