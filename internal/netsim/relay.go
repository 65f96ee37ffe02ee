package netsim

import (
	"net/netip"

	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// relayState tracks a Relay's forwarding state (spec §4.10,
// original_source's RelayState): it typically moves Idle -> Pending ->
// Forwarding, then back to either Idle or Pending.
type relayState int

const (
	relayIdle relayState = iota
	relayPending
	relayForwarding
)

// RateLimit specifies the throughput limit a Relay enforces (spec
// §4.10, original_source's RateLimit).
type RateLimit struct {
	BytesPerSecond uint64
	Unlimited      bool
}

// Scheduler is the same host-queue capability vfile.Timer/TimerFD run
// on (schedule a callback at an absolute time, read the current time);
// reusing it here means internal/host's event queue adapter serves
// every package in this module identically.
type Scheduler = vfile.Scheduler

// Relay forwards packets from one source NetworkInterface to whatever
// destination interface lookupDest resolves, optionally enforcing a
// token-bucket rate limit (spec §4.10, original_source's relay/mod.rs).
// One Relay exists per source interface; lookupDest is the host's
// routing table ("Host::get_packet_device").
type Relay struct {
	src         *NetworkInterface
	lookupDest  func(dst netip.Addr) *NetworkInterface
	rateLimiter *TokenBucket
	sched       Scheduler

	state      relayState
	nextPacket *Packet
	lastNow    clock.EmulatedTime

	deliverFn func(dst *NetworkInterface, p *Packet)
}

// SetDeliverFn overrides how a conforming packet is handed to its
// resolved destination interface, in place of the default dst.Deliver(p).
// A Topology wiring multiple hosts together through a routing table uses
// this to charge the resolved path's latency and loss before a
// cross-host packet actually arrives (spec §4.16), without this package
// needing to know anything about hosts or routing tables itself.
func (r *Relay) SetDeliverFn(fn func(dst *NetworkInterface, p *Packet)) {
	r.deliverFn = fn
}

// NewRelay returns a Relay forwarding src's queued packets via
// lookupDest, governed by rate (a zero-value RateLimit is unlimited).
func NewRelay(src *NetworkInterface, lookupDest func(netip.Addr) *NetworkInterface, rate RateLimit, now clock.EmulatedTime, sched Scheduler) *Relay {
	var tb *TokenBucket
	if !rate.Unlimited && rate.BytesPerSecond > 0 {
		// Refill once per millisecond, matching
		// original_source's create_token_bucket period.
		tb = NewTokenBucket(rate.BytesPerSecond, rate.BytesPerSecond/1000, clock.FromMillis(1), now)
	}
	return &Relay{src: src, lookupDest: lookupDest, rateLimiter: tb, sched: sched, lastNow: now}
}

// Notify signals that the source interface transitioned from empty to
// non-empty; it must be called whenever that happens to (re)start
// forwarding. Idle schedules an immediate forward task; Pending and
// Forwarding are no-ops, since a forward pass is already scheduled or
// already running and will observe the new packet itself.
func (r *Relay) Notify(now clock.EmulatedTime) {
	r.lastNow = now
	switch r.state {
	case relayIdle:
		r.forwardLater(0)
	case relayPending, relayForwarding:
	}
}

func (r *Relay) forwardLater(delay clock.SimulationTime) {
	r.state = relayPending
	at := r.lastNow.Add(delay)
	r.sched.ScheduleAt(at, func() {
		r.lastNow = at
		r.runForwardTask()
	})
}

func (r *Relay) runForwardTask() {
	r.state = relayIdle
	if wait, blocked := r.forwardUntilBlocked(); blocked {
		r.forwardLater(wait)
	}
}

// forwardUntilBlocked forwards queued packets until either the source
// runs out of packets (returns false) or the rate limiter runs out of
// tokens (returns the wait duration and true), matching
// original_source's forward_until_blocked.
func (r *Relay) forwardUntilBlocked() (clock.SimulationTime, bool) {
	r.state = relayForwarding

	for {
		p := r.nextPacket
		r.nextPacket = nil
		if p == nil {
			var ok bool
			p, ok = r.src.Pop()
			if !ok {
				r.state = relayIdle
				return 0, false
			}
		}

		dst := r.lookupDest(p.Dst.Addr())
		if dst == nil {
			p.AddStatus(StatusRouterDropped)
			continue
		}

		isLocal := r.src.Addr == dst.Addr
		if r.rateLimiter != nil && !isLocal {
			if _, wait, ok := r.rateLimiter.ConformingRemove(r.lastNow, uint64(p.TotalSize())); !ok {
				p.AddStatus(StatusRelayCached)
				r.nextPacket = p
				r.state = relayIdle
				return wait, true
			}
		}

		p.AddStatus(StatusRelayForwarded)
		if r.deliverFn != nil {
			r.deliverFn(dst, p)
		} else {
			dst.Deliver(p)
		}
	}
}
