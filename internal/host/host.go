// Package host ties the per-host state the scheduler round-robins over
// (spec §3 "Host", §4.15) into a single unit: a network namespace, a
// process tree, and the event queue that drives every timer, relay and
// blocked syscall living on it. Grounded on original_source's
// host/thread.rs (the Thread trait's get_process_id/get_host_id linkage
// mirrored here as struct fields rather than trait methods) and
// scheduler/thread_per_host.rs's one-goroutine-per-host execution model,
// which is exactly the invariant that lets nothing in this package be
// synchronized.
package host

import (
	"math/rand"
	"net/netip"

	"github.com/hashicorp/go-hclog"

	"github.com/shadow-sim/shadow-core/internal/event"
	"github.com/shadow-sim/shadow-core/internal/netgraph"
	"github.com/shadow-sim/shadow-core/internal/netsim"
	"github.com/shadow-sim/shadow-core/pkg/clock"
	"github.com/shadow-sim/shadow-core/pkg/shmem"
)

// Host is one simulated machine. Exactly one goroutine ever touches a
// given Host's state at a time — the scheduler's round/barrier
// discipline guarantees this (internal/sched) — so nothing here needs a
// mutex.
type Host struct {
	Name   string
	NodeID netgraph.NodeID
	Net    *netsim.NetworkNamespace

	loRelay  *netsim.Relay
	ethRelay *netsim.Relay
	router   func(netip.Addr) *netsim.NetworkInterface

	queue *event.Queue[*Host]
	now   clock.EmulatedTime

	rng *rand.Rand
	shm *shmem.Allocator

	processes map[int32]*Process
	initPID   int32
	nextPID   int32

	log hclog.Logger
}

// Config bundles a Host's construction-time parameters beyond its name
// and node identity: the qdisc its two interfaces run, the seed for its
// per-host deterministic random stream (spec §3 "a per-host random
// stream"), and an optional egress rate limit on its eth0 relay.
type Config struct {
	Addr       netip.Addr
	Qdisc      netsim.QueueKind
	Seed       uint64
	EgressRate netsim.RateLimit
	Log        hclog.Logger
}

// New returns an initialized Host with no processes and an empty event
// queue: NextEventTime reports none until a timer, relay or spawned
// process schedules work on it.
func New(name string, nodeID netgraph.NodeID, cfg Config) *Host {
	log := cfg.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	h := &Host{
		Name:      name,
		NodeID:    nodeID,
		Net:       netsim.NewNetworkNamespace(cfg.Addr, cfg.Qdisc),
		queue:     event.NewQueue[*Host](),
		rng:       rand.New(rand.NewSource(int64(cfg.Seed))),
		shm:       shmem.NewAllocator(),
		processes: make(map[int32]*Process),
		nextPID:   1,
		log:       log.Named("host." + name),
	}
	h.router = h.defaultRouter

	lookup := func(addr netip.Addr) *netsim.NetworkInterface { return h.router(addr) }
	h.loRelay = netsim.NewRelay(h.Net.Localhost, lookup, netsim.RateLimit{Unlimited: true}, h.now, h)
	h.ethRelay = netsim.NewRelay(h.Net.Internet, lookup, cfg.EgressRate, h.now, h)
	h.Net.Localhost.SetOnEnqueue(func() { h.loRelay.Notify(h.now) })
	h.Net.Internet.SetOnEnqueue(func() { h.ethRelay.Notify(h.now) })
	return h
}

// defaultRouter resolves only this host's own two interfaces, matching
// original_source's NetworkNamespace::interface_borrow scoped to a
// single host; anything else is unreachable until a Topology (topology.go)
// installs a wider router via SetRouter.
func (h *Host) defaultRouter(addr netip.Addr) *netsim.NetworkInterface {
	return h.Net.InterfaceFor(addr)
}

// SetRouter overrides destination resolution for both of this host's
// Relays, while still preferring the host's own interfaces first — a
// Topology can redirect foreign addresses elsewhere but can never shadow
// a host's own loopback or public address.
func (h *Host) SetRouter(fn func(netip.Addr) *netsim.NetworkInterface) {
	h.router = func(addr netip.Addr) *netsim.NetworkInterface {
		if local := h.defaultRouter(addr); local != nil {
			return local
		}
		if fn == nil {
			return nil
		}
		return fn(addr)
	}
}

// RNG returns this host's per-host deterministic random stream (spec
// §3), used for every autobind/ephemeral-port/Unix-socket-name
// allocation a process on this host performs.
func (h *Host) RNG() *rand.Rand { return h.rng }

// Now implements vfile.Scheduler / netsim.Scheduler: the host's current
// barrier time, advanced only by RunRound.
func (h *Host) Now() clock.EmulatedTime { return h.now }

// ScheduleAt implements vfile.Scheduler / netsim.Scheduler by queuing fn
// onto this host's own event queue.
func (h *Host) ScheduleAt(at clock.EmulatedTime, fn func()) {
	h.queue.ScheduleAt(at, event.NewTaskRef[*Host](func(*Host) { fn() }))
}

// NextEventTime implements internal/sched's Host interface.
func (h *Host) NextEventTime() (clock.EmulatedTime, bool) {
	return h.queue.NextTime()
}

// RunRound implements internal/sched's Host interface: drain every event
// scheduled at or before barrier, in queue order, then advance the
// host's clock to barrier even if nothing fired, so a quiet host still
// keeps pace with the rest of the simulation.
func (h *Host) RunRound(barrier clock.EmulatedTime) {
	for {
		at, task, ok := h.queue.PopBefore(barrier)
		if !ok {
			break
		}
		h.now = at
		task.Run(h)
	}
	h.now = barrier
}

// Process returns the process registered under pid, or nil.
func (h *Host) Process(pid int32) *Process { return h.processes[pid] }

func (h *Host) allocPID() int32 {
	pid := h.nextPID
	h.nextPID++
	return pid
}

// Reap removes a zombie process entirely, freeing its rusage block.
// wait4/waitid call this once they've consumed a zombie's exit status;
// Process.Exit calls it immediately instead when the parent ignores
// SIGCHLD or keeps its default disposition with SA_NOCLDWAIT set (spec
// §4.15), since such a parent never intends to wait() at all.
func (h *Host) Reap(pid int32) {
	p, ok := h.processes[pid]
	if !ok {
		return
	}
	if p.rusageBlock != nil {
		h.shm.Free(p.rusageName)
	}
	delete(h.processes, pid)
}
