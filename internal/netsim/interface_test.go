package netsim

import (
	"net/netip"
	"testing"
)

func mustAddr(s string) netip.Addr { return netip.MustParseAddr(s) }

func TestInterfaceEnqueuePopRoundTrips(t *testing.T) {
	iface := NewNetworkInterface("eth0", mustAddr("10.0.0.1"), QueueFIFO)
	src := netip.AddrPortFrom(mustAddr("10.0.0.1"), 1000)
	dst := netip.AddrPortFrom(mustAddr("10.0.0.2"), 2000)
	p := NewPacket(ProtocolUDP, src, dst, []byte("hi"))

	if err := iface.Enqueue(p, 0); err != nil {
		t.Fatal(err)
	}
	if iface.Len() != 1 {
		t.Fatalf("got len %d, want 1", iface.Len())
	}
	got, ok := iface.Pop()
	if !ok || got != p {
		t.Fatal("expected to pop the same packet back")
	}
}

type recordingSocket struct {
	got []*Packet
}

func (r *recordingSocket) DeliverPacket(p *Packet) { r.got = append(r.got, p) }

func TestInterfaceDeliverDemuxesToExactMatchFirst(t *testing.T) {
	iface := NewNetworkInterface("eth0", mustAddr("10.0.0.1"), QueueFIFO)
	remote := netip.AddrPortFrom(mustAddr("10.0.0.2"), 2000)
	wildcard := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

	exact := &recordingSocket{}
	listener := &recordingSocket{}
	iface.Associate(ProtocolUDP, 1000, wildcard, listener)
	iface.Associate(ProtocolUDP, 1000, remote, exact)

	p := NewPacket(ProtocolUDP, remote, netip.AddrPortFrom(mustAddr("10.0.0.1"), 1000), nil)
	iface.Deliver(p)

	if len(exact.got) != 1 {
		t.Fatalf("expected exact-match socket to receive the packet, got %d", len(exact.got))
	}
	if len(listener.got) != 0 {
		t.Fatal("expected wildcard listener not to receive a packet matched exactly")
	}
}

func TestInterfaceDeliverFallsBackToWildcard(t *testing.T) {
	iface := NewNetworkInterface("eth0", mustAddr("10.0.0.1"), QueueFIFO)
	wildcard := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	listener := &recordingSocket{}
	iface.Associate(ProtocolUDP, 1000, wildcard, listener)

	remote := netip.AddrPortFrom(mustAddr("10.0.0.9"), 4000)
	p := NewPacket(ProtocolUDP, remote, netip.AddrPortFrom(mustAddr("10.0.0.1"), 1000), nil)
	iface.Deliver(p)

	if len(listener.got) != 1 {
		t.Fatalf("expected wildcard listener to receive the packet, got %d", len(listener.got))
	}
}

func TestInterfaceIsAddrInUse(t *testing.T) {
	iface := NewNetworkInterface("eth0", mustAddr("10.0.0.1"), QueueFIFO)
	wildcard := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)
	if iface.IsAddrInUse(ProtocolUDP, 1000, wildcard) {
		t.Fatal("expected no association yet")
	}
	iface.Associate(ProtocolUDP, 1000, wildcard, &recordingSocket{})
	if !iface.IsAddrInUse(ProtocolUDP, 1000, wildcard) {
		t.Fatal("expected association to be found")
	}
	iface.Disassociate(ProtocolUDP, 1000, wildcard)
	if iface.IsAddrInUse(ProtocolUDP, 1000, wildcard) {
		t.Fatal("expected association to be removed")
	}
}
