// Package workpool implements the scheduler's two worker-pool strategies
// (thread-per-core and thread-per-host) behind one Scope API, and a
// generational count-down latch (spec §3 "Latch", §4.2). Neither pool
// uses the latch; both wait for a round on an errgroup.Group.
package workpool

import "sync"

// Latch is a generational count-down synchronization object: N counters
// must call CountDown before M waiters' Wait returns; once the last
// waiter returns, the generation advances and counters/waiters must
// synchronize again for the next round.
type Latch struct {
	mu             sync.Mutex
	cond           *sync.Cond
	generation     int
	counters       int
	waiters        int
	totalCounters  int
	totalWaiters   int
}

// NewLatch returns a latch configured for totalCounters distinct callers
// of CountDown and totalWaiters distinct callers of Wait, per generation.
func NewLatch(totalCounters, totalWaiters int) *Latch {
	l := &Latch{
		counters:      totalCounters,
		waiters:       totalWaiters,
		totalCounters: totalCounters,
		totalWaiters:  totalWaiters,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// CountDown decrements the counter count for the current generation. The
// caller must call it exactly once per generation.
func (l *Latch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counters--
	if l.counters < 0 {
		panic("workpool: CountDown called more times than configured counters")
	}
	if l.counters == 0 {
		l.cond.Broadcast()
	}
}

// Wait blocks until all counters have counted down for the current
// generation, then participates in advancing to the next generation once
// every waiter has returned.
func (l *Latch) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	gen := l.generation
	for l.generation == gen && l.counters > 0 {
		l.cond.Wait()
	}
	l.waiters--
	if l.waiters == 0 {
		l.generation++
		l.counters = l.totalCounters
		l.waiters = l.totalWaiters
		l.cond.Broadcast()
	} else {
		for l.generation == gen {
			l.cond.Wait()
		}
	}
}
