package host

import (
	"math/rand"
	"net/netip"

	"github.com/shadow-sim/shadow-core/internal/netgraph"
	"github.com/shadow-sim/shadow-core/internal/netsim"
)

// Topology wires a set of Hosts' public addresses together through a
// netgraph.RoutingTable (spec §4.16): it installs, on every joined
// host, a router that also resolves peer hosts' addresses, and a
// delivery hook on that host's egress Relay charging the resolved
// path's latency and loss before a cross-host packet actually arrives.
// It is the concrete object original_source's relay/mod.rs doc comment
// anticipates when it says routing is "the Host['s] ... own routing
// table" (Host::get_packet_device) — assembled one level up, across the
// whole simulated network, rather than inside any single Relay or Host.
type Topology struct {
	routes  netgraph.RoutingTable
	hosts   map[netip.Addr]*Host
	lossRNG *rand.Rand
}

// NewTopology returns a Topology resolving paths via routes. seed drives
// the coin-flip stream deciding, per packet, whether a resolved loss
// rate actually drops it — kept independent of any single host's own
// per-host stream (spec §3), since a link's loss is a property of the
// path between two hosts, not of either endpoint alone.
func NewTopology(routes netgraph.RoutingTable, seed uint64) *Topology {
	return &Topology{
		routes:  routes,
		hosts:   make(map[netip.Addr]*Host),
		lossRNG: rand.New(rand.NewSource(int64(seed))),
	}
}

// Join registers h under its public (eth0) address and installs a
// router plus a delivery hook on its egress Relay, so packets addressed
// to any other joined host incur that pair's routed latency and loss
// instead of arriving instantaneously. A host's own loopback and public
// addresses always resolve locally first (Host.SetRouter's own
// guarantee); only genuinely foreign addresses reach this Topology.
func (t *Topology) Join(h *Host) {
	t.hosts[h.Net.Internet.Addr] = h
	t.hosts[h.Net.DefaultIP] = h

	h.SetRouter(func(addr netip.Addr) *netsim.NetworkInterface {
		peer, ok := t.hosts[addr]
		if !ok {
			return nil
		}
		return peer.Net.Internet
	})
	h.ethRelay.SetDeliverFn(func(dst *netsim.NetworkInterface, p *netsim.Packet) {
		t.deliver(h, dst, p)
	})
}

func (t *Topology) deliver(src *Host, dst *netsim.NetworkInterface, p *netsim.Packet) {
	peer, ok := t.hosts[dst.Addr]
	if !ok || peer == src {
		dst.Deliver(p)
		return
	}

	latency, lossRate, err := t.routes.PathBetween(src.NodeID, peer.NodeID)
	if err != nil {
		p.AddStatus(netsim.StatusRouterDropped)
		return
	}
	if lossRate > 0 && t.lossRNG.Float64() < lossRate {
		p.AddStatus(netsim.StatusRouterDropped)
		return
	}

	src.ScheduleAt(src.Now().Add(latency), func() {
		dst.Deliver(p)
	})
}
