package workpool

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool is the scope-based scheduling API shared by ThreadPerCore and
// ThreadPerHost: AddHost/RemoveHost manage host assignment, Scope runs
// fn exactly once per owned host, in parallel across workers, and
// blocks until every worker has finished the round.
type Pool[H comparable] interface {
	AddHost(h H)
	RemoveHost(h H)
	NumWorkers() int
	Scope(fn func(h H))
}

// panicValue wraps a recovered panic so it can travel through an
// errgroup.Group's error channel and be re-raised on the caller's
// goroutine, matching the source's "panics in a worker are captured and
// re-raised on the main thread at scope exit" contract.
type panicValue struct{ v any }

func (p panicValue) Error() string { return fmt.Sprintf("workpool: worker panic: %v", p.v) }

func runCaptured(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicValue{v: r}
		}
	}()
	f()
	return nil
}

func reraise(err error) {
	if err == nil {
		return
	}
	var pv panicValue
	if errAs(err, &pv) {
		panic(pv.v)
	}
	panic(err)
}

func errAs(err error, target *panicValue) bool {
	pv, ok := err.(panicValue)
	if !ok {
		return false
	}
	*target = pv
	return true
}

// ThreadPerCore assigns hosts round-robin across a fixed set of worker
// queues (one per configured CPU) and drains them in parallel each
// round, work-stealing from other workers' queues once a worker's own
// queue runs dry (spec §4.2).
type ThreadPerCore[H comparable] struct {
	mu         sync.Mutex
	numWorkers int
	queues     []*deque[H]
	next       int
}

type deque[H comparable] struct {
	mu     sync.Mutex
	active []H
	mirror []H
}

// NewThreadPerCore returns a pool with the given number of worker
// queues.
func NewThreadPerCore[H comparable](numWorkers int) *ThreadPerCore[H] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	p := &ThreadPerCore[H]{numWorkers: numWorkers}
	p.queues = make([]*deque[H], numWorkers)
	for i := range p.queues {
		p.queues[i] = &deque[H]{}
	}
	return p
}

func (p *ThreadPerCore[H]) NumWorkers() int { return p.numWorkers }

// AddHost assigns h to the next worker in round-robin order.
func (p *ThreadPerCore[H]) AddHost(h H) {
	p.mu.Lock()
	i := p.next % p.numWorkers
	p.next++
	p.mu.Unlock()

	q := p.queues[i]
	q.mu.Lock()
	q.active = append(q.active, h)
	q.mu.Unlock()
}

// RemoveHost removes h from whichever worker's active or mirror queue
// currently holds it.
func (p *ThreadPerCore[H]) RemoveHost(h H) {
	for _, q := range p.queues {
		q.mu.Lock()
		q.active = removeFirst(q.active, h)
		q.mirror = removeFirst(q.mirror, h)
		q.mu.Unlock()
	}
}

func removeFirst[H comparable](s []H, h H) []H {
	for i, v := range s {
		if v == h {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

func (q *deque[H]) popFront() (H, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.active) == 0 {
		var zero H
		return zero, false
	}
	h := q.active[0]
	q.active = q.active[1:]
	return h, true
}

func (q *deque[H]) stealBack() (H, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.active) == 0 {
		var zero H
		return zero, false
	}
	n := len(q.active) - 1
	h := q.active[n]
	q.active = q.active[:n]
	return h, true
}

func (q *deque[H]) pushMirror(h H) {
	q.mu.Lock()
	q.mirror = append(q.mirror, h)
	q.mu.Unlock()
}

func (q *deque[H]) swap() {
	q.mu.Lock()
	q.active, q.mirror = q.mirror, q.active[:0]
	q.mu.Unlock()
}

// Scope calls fn exactly once for every host currently owned by the
// pool. Each worker drains its own queue first; once empty it steals
// from other workers' queues round-robin starting just past its own
// index. Scope blocks until all workers are idle and have no more
// hosts to process, then rotates the drained (mirror) queues back into
// place for the next round.
func (p *ThreadPerCore[H]) Scope(fn func(h H)) {
	var g errgroup.Group
	for w := 0; w < p.numWorkers; w++ {
		w := w
		g.Go(func() error {
			return runCaptured(func() { p.runWorker(w, fn) })
		})
	}
	err := g.Wait()
	for _, q := range p.queues {
		q.swap()
	}
	reraise(err)
}

func (p *ThreadPerCore[H]) runWorker(idx int, fn func(h H)) {
	own := p.queues[idx]
	for {
		h, ok := own.popFront()
		if !ok {
			h, ok = p.steal(idx)
			if !ok {
				return
			}
		}
		fn(h)
		own.pushMirror(h)
	}
}

func (p *ThreadPerCore[H]) steal(idx int) (H, bool) {
	for i := 1; i < p.numWorkers; i++ {
		victim := (idx + i) % p.numWorkers
		if h, ok := p.queues[victim].stealBack(); ok {
			return h, true
		}
	}
	var zero H
	return zero, false
}

// ThreadPerHost runs one goroutine per host, bounded in parallelism by
// a fixed worker budget (spec §4.2: "bounded in parallel execution by
// the number of configured CPUs through a latch"). Flagged by the
// source itself as possibly removable (spec §9 Open Questions); kept
// here as a second Pool implementation since it costs little given the
// shared Pool interface.
type ThreadPerHost[H comparable] struct {
	mu    sync.Mutex
	hosts []H
	limit int
}

// NewThreadPerHost returns a pool that runs up to `limit` hosts
// concurrently.
func NewThreadPerHost[H comparable](limit int) *ThreadPerHost[H] {
	if limit < 1 {
		limit = 1
	}
	return &ThreadPerHost[H]{limit: limit}
}

func (p *ThreadPerHost[H]) NumWorkers() int { return p.limit }

func (p *ThreadPerHost[H]) AddHost(h H) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hosts = append(p.hosts, h)
}

func (p *ThreadPerHost[H]) RemoveHost(h H) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hosts = removeFirst(p.hosts, h)
}

// Scope spawns one goroutine per host, each storing its host in a
// closure-captured slot (the goroutine analog of the source's
// thread-local slot — Go goroutines aren't pinned to OS threads, so
// there is no OS-level TLS to use), bounded to `limit` concurrent
// goroutines via errgroup's SetLimit.
func (p *ThreadPerHost[H]) Scope(fn func(h H)) {
	p.mu.Lock()
	hosts := append([]H(nil), p.hosts...)
	p.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(p.limit)
	for _, h := range hosts {
		h := h
		g.Go(func() error {
			return runCaptured(func() { fn(h) })
		})
	}
	reraise(g.Wait())
}
