// Package netgraph implements the routed-delivery lookup the network
// layer consults on every packet send (spec §4.16): a NodeID pair maps
// to a one-way latency and loss rate. The network graph format itself
// (GML) is out of scope (spec §1) and not implemented; RoutingTable is
// the seam an external GML loader would populate, modeled after how
// original_source's Relay asks its owning Host to resolve a destination
// address rather than doing path lookup itself ("This design allows the
// Host to use Host::get_packet_device to define its own routing table",
// relay/mod.rs) — generalized here into an explicit interface so the
// core can be built and tested without a graph loader at all.
package netgraph

import (
	"container/heap"
	"fmt"

	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// NodeID identifies a network graph vertex (spec §3's `network_node_id`).
type NodeID uint64

// RoutingTable resolves the path between two network nodes into the
// latency and loss rate a packet traveling between them should incur.
type RoutingTable interface {
	PathBetween(src, dst NodeID) (latency clock.SimulationTime, lossRate float64, err error)
}

// DirectRoutingTable is the `use_shortest_path: false` configuration
// (spec §4.16): every path is a single fixed hop, ignoring the graph
// entirely.
type DirectRoutingTable struct {
	Latency  clock.SimulationTime
	LossRate float64
}

// NewDirectRoutingTable returns a table reporting the same
// latency/loss for any src/dst pair.
func NewDirectRoutingTable(latency clock.SimulationTime, lossRate float64) *DirectRoutingTable {
	return &DirectRoutingTable{Latency: latency, LossRate: lossRate}
}

func (t *DirectRoutingTable) PathBetween(src, dst NodeID) (clock.SimulationTime, float64, error) {
	return t.Latency, t.LossRate, nil
}

// Edge is one directed graph edge, as an external GML loader would
// populate it.
type Edge struct {
	To       NodeID
	Latency  clock.SimulationTime
	LossRate float64
}

// ShortestPathRoutingTable computes the `use_shortest_path: true`
// configuration's path cost via Dijkstra's algorithm over an adjacency
// list, summing latency along the path and combining loss rates as the
// probability that at least one hop drops the packet (the same
// compounding original_source applies when chaining per-link loss over
// a multi-hop path).
type ShortestPathRoutingTable struct {
	adj map[NodeID][]Edge
}

// NewShortestPathRoutingTable builds a table from an adjacency list.
// Edges are directed; callers wanting a symmetric graph add both
// directions.
func NewShortestPathRoutingTable(adj map[NodeID][]Edge) *ShortestPathRoutingTable {
	return &ShortestPathRoutingTable{adj: adj}
}

type pathState struct {
	node       NodeID
	latency    clock.SimulationTime
	survival   float64 // probability the packet is not dropped along the path so far
	index      int
}

type pathHeap []*pathState

func (h pathHeap) Len() int { return len(h) }
func (h pathHeap) Less(i, j int) bool {
	return h[i].latency < h[j].latency
}
func (h pathHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *pathHeap) Push(x any) {
	s := x.(*pathState)
	s.index = len(*h)
	*h = append(*h, s)
}
func (h *pathHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// PathBetween runs Dijkstra from src, keyed by cumulative latency,
// until dst is settled, then returns its cumulative latency and
// combined loss rate (1 - product of each hop's survival probability).
func (t *ShortestPathRoutingTable) PathBetween(src, dst NodeID) (clock.SimulationTime, float64, error) {
	if src == dst {
		return 0, 0, nil
	}

	best := map[NodeID]*pathState{src: {node: src, latency: 0, survival: 1}}
	h := &pathHeap{best[src]}
	heap.Init(h)
	settled := map[NodeID]bool{}

	for h.Len() > 0 {
		cur := heap.Pop(h).(*pathState)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true
		if cur.node == dst {
			return cur.latency, 1 - cur.survival, nil
		}
		for _, e := range t.adj[cur.node] {
			if settled[e.To] {
				continue
			}
			newLatency := cur.latency + e.Latency
			newSurvival := cur.survival * (1 - e.LossRate)
			if existing, ok := best[e.To]; !ok || newLatency < existing.latency {
				ns := &pathState{node: e.To, latency: newLatency, survival: newSurvival}
				best[e.To] = ns
				heap.Push(h, ns)
			}
		}
	}
	return 0, 0, fmt.Errorf("netgraph: no path from node %d to node %d", src, dst)
}
