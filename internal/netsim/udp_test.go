package netsim

import (
	"math/rand"
	"net/netip"
	"testing"

	"github.com/shadow-sim/shadow-core/internal/vfile"
)

func TestUDPSocketBindAutobindsEphemeralPort(t *testing.T) {
	ns := NewNetworkNamespace(mustAddr("10.0.0.5"), QueueFIFO)
	u := NewUDPSocket(ns, 4096)
	rng := rand.New(rand.NewSource(1))

	if err := u.Bind(netip.AddrPortFrom(netip.IPv4Unspecified(), 0), rng); err != nil {
		t.Fatal(err)
	}
	if u.local.Port() < minRandomPort {
		t.Fatalf("got port %d, want >= %d", u.local.Port(), minRandomPort)
	}
}

func TestUDPSocketBindRejectsDuplicatePort(t *testing.T) {
	ns := NewNetworkNamespace(mustAddr("10.0.0.5"), QueueFIFO)
	rng := rand.New(rand.NewSource(1))

	a := NewUDPSocket(ns, 4096)
	if err := a.Bind(netip.AddrPortFrom(mustAddr("10.0.0.5"), 9000), rng); err != nil {
		t.Fatal(err)
	}

	b := NewUDPSocket(ns, 4096)
	if err := b.Bind(netip.AddrPortFrom(mustAddr("10.0.0.5"), 9000), rng); err != errAddrInUse {
		t.Fatalf("got %v, want errAddrInUse", err)
	}
}

func TestUDPSocketSendToAndDeliverRoundTrip(t *testing.T) {
	ns := NewNetworkNamespace(mustAddr("10.0.0.5"), QueueFIFO)
	rng := rand.New(rand.NewSource(1))

	receiver := NewUDPSocket(ns, 4096)
	if err := receiver.Bind(netip.AddrPortFrom(mustAddr("10.0.0.5"), 9000), rng); err != nil {
		t.Fatal(err)
	}

	sender := NewUDPSocket(ns, 4096)
	if err := sender.Bind(netip.AddrPortFrom(mustAddr("10.0.0.5"), 9001), rng); err != nil {
		t.Fatal(err)
	}

	if err := sender.SendTo([]byte("hello"), netip.AddrPortFrom(mustAddr("10.0.0.5"), 9000), rng); err != nil {
		t.Fatal(err)
	}

	// Deliver directly: this test exercises the socket API, not relay
	// forwarding (relay_test.go covers the interface-to-interface path).
	p, ok := ns.Internet.Pop()
	if !ok {
		t.Fatal("expected a packet queued on the interface")
	}
	ns.Internet.Deliver(p)

	buf := make([]byte, 16)
	n, err := receiver.RecvFrom(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want %q", buf[:n], "hello")
	}
}

func TestUDPSocketRecvFromEmptyReportsWouldBlock(t *testing.T) {
	ns := NewNetworkNamespace(mustAddr("10.0.0.5"), QueueFIFO)
	u := NewUDPSocket(ns, 4096)
	_, err := u.RecvFrom(make([]byte, 16))
	if !vfile.IsWouldBlock(err) {
		t.Fatalf("got %v, want a would-block sentinel", err)
	}
}

func TestUDPSocketCloseDisassociates(t *testing.T) {
	ns := NewNetworkNamespace(mustAddr("10.0.0.5"), QueueFIFO)
	rng := rand.New(rand.NewSource(1))
	u := NewUDPSocket(ns, 4096)
	if err := u.Bind(netip.AddrPortFrom(mustAddr("10.0.0.5"), 9000), rng); err != nil {
		t.Fatal(err)
	}
	cbq := &vfile.CallbackQueue{}
	u.Close(cbq)
	cbq.Drain()

	other := NewUDPSocket(ns, 4096)
	if err := other.Bind(netip.AddrPortFrom(mustAddr("10.0.0.5"), 9000), rng); err != nil {
		t.Fatalf("expected the port to be free after close, got %v", err)
	}
}
