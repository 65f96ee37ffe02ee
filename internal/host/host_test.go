package host

import (
	"net/netip"
	"testing"

	"github.com/shadow-sim/shadow-core/internal/netsim"
	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

func newTestHost(t *testing.T, addr string) *Host {
	t.Helper()
	return New("h", 1, Config{
		Addr:  netip.MustParseAddr(addr),
		Qdisc: netsim.QueueFIFO,
		Seed:  1,
	})
}

func TestHostNextEventTimeNoneWhenQueueEmpty(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")
	if _, ok := h.NextEventTime(); ok {
		t.Fatal("expected no pending event on a fresh host")
	}
}

func TestHostRunRoundDrainsEventsUpToBarrier(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")

	var ran []string
	h.ScheduleAt(clock.SimulationStart.Add(clock.FromMillis(5)), func() { ran = append(ran, "early") })
	h.ScheduleAt(clock.SimulationStart.Add(clock.FromMillis(50)), func() { ran = append(ran, "late") })

	h.RunRound(clock.SimulationStart.Add(clock.FromMillis(10)))

	if len(ran) != 1 || ran[0] != "early" {
		t.Fatalf("got %v, want only the early event to have run", ran)
	}
	if h.Now() != clock.SimulationStart.Add(clock.FromMillis(10)) {
		t.Fatalf("got now=%v, want the round's barrier", h.Now())
	}

	h.RunRound(clock.SimulationStart.Add(clock.FromMillis(100)))
	if len(ran) != 2 || ran[1] != "late" {
		t.Fatalf("got %v, want the late event to have run on the next round", ran)
	}
}

func TestHostUDPSocketEnqueueWakesRelayAcrossLoopback(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")

	recvSock := netsim.NewUDPSocket(h.Net, 4096)
	if err := recvSock.Bind(netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 9000), h.RNG()); err != nil {
		t.Fatal(err)
	}

	sendSock := netsim.NewUDPSocket(h.Net, 4096)
	if err := sendSock.Bind(netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 0), h.RNG()); err != nil {
		t.Fatal(err)
	}
	if err := sendSock.Connect(netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 9000), h.RNG()); err != nil {
		t.Fatal(err)
	}

	if _, err := sendSock.Writev([][]byte{[]byte("hi")}, &vfile.CallbackQueue{}); err != nil {
		t.Fatal(err)
	}

	at, ok := h.NextEventTime()
	if !ok {
		t.Fatal("expected enqueuing a packet to have woken the loopback relay")
	}
	h.RunRound(at)

	buf := make([]byte, 16)
	n, err := recvSock.RecvFrom(buf)
	if err != nil {
		t.Fatalf("expected the packet to have been forwarded to the receiver, got %v", err)
	}
	if string(buf[:n]) != "hi" {
		t.Fatalf("got %q, want %q", buf[:n], "hi")
	}
}
