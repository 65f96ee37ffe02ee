package netsim

import (
	"net/netip"

	"golang.org/x/net/ipv4"
)

// Protocol is the transport protocol carried in a Packet, matching
// original_source's IanaProtocol (packet.rs / namespace.rs).
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
)

func (p Protocol) String() string {
	if p == ProtocolUDP {
		return "UDP"
	}
	return "TCP"
}

// Status is a delivery-status bitmap a Packet accumulates as it moves
// through the simulator (spec §3 "Packet"), matching the original's
// PacketStatus enum (RouterEnqueued/RouterDequeued/RouterDropped/
// RelayCached/RelayForwarded).
type Status uint8

const (
	StatusRouterEnqueued Status = 1 << iota
	StatusRouterDequeued
	StatusRouterDropped
	StatusRelayCached
	StatusRelayForwarded
)

// Packet is an immutable record (spec §3: "two packets with identical
// fields remain distinct objects") carrying a source/destination
// address pair, protocol, payload and a header size. Identity is
// pointer identity: every call site that needs a distinct packet must
// construct its own *Packet.
type Packet struct {
	Src        netip.AddrPort
	Dst        netip.AddrPort
	Protocol   Protocol
	Payload    []byte
	HeaderSize int

	status Status
}

// udpHeaderLen and tcpHeaderLen are the minimum transport header sizes
// added on top of the IPv4 header (ipv4.HeaderLen) to account for a
// packet's total wire size, matching the original's IP+transport
// header accounting.
const (
	udpHeaderLen = 8
	tcpHeaderLen = 20
)

// NewPacket returns a packet with a protocol-appropriate header size.
func NewPacket(proto Protocol, src, dst netip.AddrPort, payload []byte) *Packet {
	header := ipv4.HeaderLen
	if proto == ProtocolUDP {
		header += udpHeaderLen
	} else {
		header += tcpHeaderLen
	}
	return &Packet{Src: src, Dst: dst, Protocol: proto, Payload: payload, HeaderSize: header}
}

// TotalSize is the byte cost the token bucket and interface queue
// charge against: header plus payload.
func (p *Packet) TotalSize() int { return p.HeaderSize + len(p.Payload) }

// AddStatus ORs status into the packet's delivery-status bitmap.
func (p *Packet) AddStatus(s Status) { p.status |= s }

// HasStatus reports whether every bit in s has been recorded.
func (p *Packet) HasStatus(s Status) bool { return p.status&s == s }
