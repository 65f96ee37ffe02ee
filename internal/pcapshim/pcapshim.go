// Package pcapshim documents the contract a real pcap file writer must
// satisfy to plug into a NetworkInterface as its netsim.PacketSink
// (spec §4.17 [FULL]). Writing an actual pcap file — record headers,
// link-layer framing, rotation — is out of scope; this package exists
// so that contract has a fixed address to be named from, rather than
// living only as a comment on netsim.PacketSink itself.
//
// A conforming writer wraps a *pcapgo.Writer (github.com/google/gopacket,
// already present in this corpus's dependency surface for exactly this
// purpose) behind Observe: each call synthesizes an Ethernet/IPv4/
// TCP-or-UDP frame around the packet's payload and hands it to
// WritePacket with the emulated time Observe was called at. None of
// that construction belongs in netsim, which only ever needs the
// narrow Observe(p, outbound) shape to stay decoupled from any
// particular capture format.
package pcapshim

import (
	"github.com/shadow-sim/shadow-core/internal/netsim"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// Writer is the contract a real pcap sink implements in addition to
// netsim.PacketSink: a way to learn the interface's current time at
// the moment a packet crosses it, since netsim.PacketSink.Observe
// itself carries no timestamp (spec §4.17's Observe/WritePacket split
// is this package's addition — original_source's own pcap writer reads
// the host's clock directly rather than receiving it as an argument,
// which this module's decoupled NetworkInterface cannot do without an
// import of internal/host it must not take on).
type Writer interface {
	netsim.PacketSink

	// WritePacket appends one captured frame at emulated time t. A real
	// implementation serializes p into a pcap record. netsim.NullSink
	// has no WritePacket method and is not a Writer.
	WritePacket(t clock.EmulatedTime, p *netsim.Packet)
}

// TimedSink adapts a Writer into a netsim.PacketSink by pairing it with
// a clock source, since Observe itself is timeless. No other package in
// this module installs one; a Host satisfies the Clock field.
type TimedSink struct {
	Writer Writer
	Clock  interface{ Now() clock.EmulatedTime }
}

// Observe implements netsim.PacketSink by stamping the current time and
// forwarding to the Writer.
func (s TimedSink) Observe(p *netsim.Packet, outbound bool) {
	if s.Writer == nil {
		return
	}
	s.Writer.WritePacket(s.Clock.Now(), p)
}
