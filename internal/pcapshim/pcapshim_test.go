package pcapshim

import (
	"net/netip"
	"testing"

	"github.com/shadow-sim/shadow-core/internal/netsim"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

type recordingWriter struct {
	times []clock.EmulatedTime
	pkts  []*netsim.Packet
}

func (w *recordingWriter) Observe(p *netsim.Packet, outbound bool) {}

func (w *recordingWriter) WritePacket(t clock.EmulatedTime, p *netsim.Packet) {
	w.times = append(w.times, t)
	w.pkts = append(w.pkts, p)
}

type fixedClock clock.EmulatedTime

func (c fixedClock) Now() clock.EmulatedTime { return clock.EmulatedTime(c) }

func TestTimedSinkStampsCurrentTime(t *testing.T) {
	w := &recordingWriter{}
	at := clock.SimulationStart.Add(clock.FromMillis(42))
	sink := TimedSink{Writer: w, Clock: fixedClock(at)}

	src := netip.MustParseAddr("10.0.0.1")
	dst := netip.MustParseAddr("10.0.0.2")
	p := netsim.NewPacket(netsim.ProtocolUDP, netip.AddrPortFrom(src, 1000), netip.AddrPortFrom(dst, 2000), []byte("x"))

	sink.Observe(p, true)

	if len(w.times) != 1 || w.times[0] != at {
		t.Fatalf("got times %v, want [%v]", w.times, at)
	}
	if len(w.pkts) != 1 || w.pkts[0] != p {
		t.Fatal("expected the same packet pointer to reach WritePacket")
	}
}

func TestTimedSinkNilWriterIsNoop(t *testing.T) {
	sink := TimedSink{Clock: fixedClock(clock.SimulationStart)}
	p := netsim.NewPacket(netsim.ProtocolTCP, netip.AddrPort{}, netip.AddrPort{}, nil)

	sink.Observe(p, false) // must not panic
}
