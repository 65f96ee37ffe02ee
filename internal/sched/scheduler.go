// Package sched implements the host scheduler (spec §4.3): it assigns
// hosts to worker threads via internal/workpool and runs one "round" per
// tick, advancing the simulation barrier to the minimum of all hosts'
// next-event times.
package sched

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shadow-sim/shadow-core/internal/workpool"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// Host is the subset of host.Host the scheduler needs: its next pending
// event time and a way to drain events up to a round's barrier. Kept as
// an interface so this package has no import-cycle dependency on
// internal/host.
type Host interface {
	// NextEventTime returns the time of the host's earliest pending
	// event and true, or false if it has none.
	NextEventTime() (clock.EmulatedTime, bool)
	// RunRound drains every event with scheduled time <= barrier, in
	// queue order.
	RunRound(barrier clock.EmulatedTime)
}

// Metrics are the scheduler's prometheus instruments, mirroring
// nabbar-golib's use of client_golang counters/histograms for internal
// subsystem instrumentation.
type Metrics struct {
	RoundDuration prometheus.Histogram
	// EventsProcessed is registered but never incremented by Scheduler:
	// Host.RunRound reports no event count.
	EventsProcessed prometheus.Counter
}

// NewMetrics registers a fresh set of scheduler metrics with reg. Pass a
// dedicated *prometheus.Registry per simulation run to avoid collisions
// across concurrent test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "shadow_core_scheduler_round_duration_seconds",
			Help: "Wall-clock duration of one scheduler round.",
		}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadow_core_scheduler_events_processed_total",
			Help: "Total events drained across all hosts.",
		}),
	}
	reg.MustRegister(m.RoundDuration, m.EventsProcessed)
	return m
}

// Scheduler drives the simulation's round/barrier loop described in
// spec §4.3 and §5: within a round, every host runs in parallel and no
// two workers ever touch the same host; across rounds, round k's events
// fully complete before round k+1 starts.
type Scheduler struct {
	mu          sync.Mutex
	hosts       []Host
	pool        workpool.Pool[Host]
	roundLength clock.SimulationTime
	log         hclog.Logger
	metrics     *Metrics
	now         clock.EmulatedTime
}

// New returns a Scheduler backed by pool, advancing the barrier by
// roundLength of simulated time per round (spec §4.3: "typically 1 ms of
// simulated time").
func New(pool workpool.Pool[Host], roundLength clock.SimulationTime, log hclog.Logger, metrics *Metrics) *Scheduler {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Scheduler{pool: pool, roundLength: roundLength, log: log.Named("scheduler"), metrics: metrics}
}

// AddHost registers h with both the scheduler's host list and its pool.
func (s *Scheduler) AddHost(h Host) {
	s.mu.Lock()
	s.hosts = append(s.hosts, h)
	s.mu.Unlock()
	s.pool.AddHost(h)
}

// RemoveHost unregisters h.
func (s *Scheduler) RemoveHost(h Host) {
	s.mu.Lock()
	for i, v := range s.hosts {
		if v == h {
			s.hosts = append(s.hosts[:i], s.hosts[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.pool.RemoveHost(h)
}

// Now returns the scheduler's current barrier time.
func (s *Scheduler) Now() clock.EmulatedTime {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// RunRound computes the next barrier as the minimum next-event time
// across all hosts, runs every host's RunRound up to barrier+roundLength
// in parallel via the pool, and reports whether any host had pending
// work (false means the simulation is idle and can stop).
func (s *Scheduler) RunRound() bool {
	s.mu.Lock()
	hosts := append([]Host(nil), s.hosts...)
	s.mu.Unlock()

	barrier, ok := s.nextBarrier(hosts)
	if !ok {
		return false
	}
	limit := barrier.Add(s.roundLength)

	start := time.Now()
	s.pool.Scope(func(h Host) { h.RunRound(limit) })
	if s.metrics != nil {
		s.metrics.RoundDuration.Observe(time.Since(start).Seconds())
	}

	s.mu.Lock()
	s.now = limit
	s.mu.Unlock()
	s.log.Debug("round complete", "barrier", limit, "hosts", len(hosts))
	return true
}

// Run drives RunRound until no host has pending work.
func (s *Scheduler) Run() {
	for s.RunRound() {
	}
}

func (s *Scheduler) nextBarrier(hosts []Host) (clock.EmulatedTime, bool) {
	min := clock.EmulatedMax
	found := false
	for _, h := range hosts {
		t, ok := h.NextEventTime()
		if !ok {
			continue
		}
		if !found || t.Before(min) {
			min = t
			found = true
		}
	}
	return min, found
}
