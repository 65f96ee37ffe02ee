// Package event implements the per-host event queue: a min-heap of
// (EmulatedTime, sequence) keyed tasks, per spec §4.4. Only the host's
// current worker ever touches a given host's queue, so the queue itself
// does no internal locking — the workpool (internal/workpool) and
// scheduler (internal/sched) are what guarantee that exclusivity.
package event

import (
	"container/heap"

	"github.com/shadow-sim/shadow-core/pkg/clock"
)

// Task is a polymorphic callback invoked with whatever host value H the
// caller parameterizes the queue on — normally *host.Host, but kept
// generic here so this package has no dependency on internal/host and
// can be unit-tested standalone.
type Task[H any] func(h H)

// TaskRef wraps a Task behind cheap-to-clone shared ownership, mirroring
// the source's Rc<dyn Fn(&Host)>.
type TaskRef[H any] struct {
	fn Task[H]
}

// NewTaskRef wraps fn.
func NewTaskRef[H any](fn Task[H]) TaskRef[H] { return TaskRef[H]{fn: fn} }

// Run invokes the wrapped task.
func (t TaskRef[H]) Run(h H) { t.fn(h) }

type entry[H any] struct {
	time EmulatedDeadline
	seq  uint64
	task TaskRef[H]
}

// EmulatedDeadline is the scheduled time of an event; kept as its own
// named type so Queue's API reads as "when", not "how long".
type EmulatedDeadline = clock.EmulatedTime

// Queue is a per-host min-heap of pending events, ordered by ascending
// time with FIFO tie-break on insertion order.
type Queue[H any] struct {
	heap heapImpl[H]
	seq  uint64
}

// NewQueue returns an empty queue.
func NewQueue[H any]() *Queue[H] {
	q := &Queue[H]{}
	heap.Init(&q.heap)
	return q
}

// ScheduleAt pushes task to fire at the given absolute EmulatedTime.
func (q *Queue[H]) ScheduleAt(at EmulatedDeadline, task TaskRef[H]) {
	heap.Push(&q.heap, entry[H]{time: at, seq: q.seq, task: task})
	q.seq++
}

// ScheduleAfter pushes task to fire delay after now.
func (q *Queue[H]) ScheduleAfter(now EmulatedDeadline, delay clock.SimulationTime, task TaskRef[H]) {
	q.ScheduleAt(now.Add(delay), task)
}

// Len reports the number of pending events.
func (q *Queue[H]) Len() int { return q.heap.Len() }

// NextTime returns the time of the earliest pending event and true, or
// the zero value and false if the queue is empty. This is a host's
// "next event time" used by the scheduler to compute the round barrier.
func (q *Queue[H]) NextTime() (EmulatedDeadline, bool) {
	if q.heap.Len() == 0 {
		return 0, false
	}
	return q.heap[0].time, true
}

// PopBefore removes and returns the earliest event if its time is <=
// barrier, along with true; otherwise it returns the zero value and
// false without modifying the queue.
func (q *Queue[H]) PopBefore(barrier EmulatedDeadline) (EmulatedDeadline, TaskRef[H], bool) {
	if q.heap.Len() == 0 || q.heap[0].time > barrier {
		var zero TaskRef[H]
		return 0, zero, false
	}
	e := heap.Pop(&q.heap).(entry[H])
	return e.time, e.task, true
}

type heapImpl[H any] []entry[H]

func (h heapImpl[H]) Len() int { return len(h) }
func (h heapImpl[H]) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h heapImpl[H]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *heapImpl[H]) Push(x any)   { *h = append(*h, x.(entry[H])) }
func (h *heapImpl[H]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
