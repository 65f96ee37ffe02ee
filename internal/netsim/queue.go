package netsim

import "container/heap"

// QueueKind selects a NetworkQueue's discipline (spec §4.16: "a
// per-interface send queue ordered by the host's qdisc (FIFO or strict
// priority)"), matching original_source's queuing.rs NetworkQueueKind.
type QueueKind int

const (
	// QueueFIFO dequeues in push order; TryPush's priority argument is
	// ignored.
	QueueFIFO QueueKind = iota
	// QueuePriority dequeues the lowest-priority item first, breaking
	// ties by push order (oldest first); TryPush requires an explicit
	// priority.
	QueuePriority
)

// PushError reports why NetworkQueue.TryPush refused an item.
type PushError int

const (
	// PushErrNone is the zero value: not an error.
	PushErrNone PushError = iota
	// PushErrAlreadyQueued means the item (by comparable identity) is
	// already present; duplicate membership is forbidden.
	PushErrAlreadyQueued
)

func (e PushError) Error() string {
	switch e {
	case PushErrAlreadyQueued:
		return "netsim: item already queued"
	default:
		return "netsim: no error"
	}
}

type prioritized[T comparable] struct {
	item       T
	priority   uint64
	pushOrder  uint64
}

// minHeap orders the smallest priority first, breaking ties by the
// smallest (earliest) pushOrder, matching original_source's `Prioritized`
// Ord impl (which builds a min-heap on top of Rust's max-heap
// BinaryHeap by inverting comparisons).
type minHeap[T comparable] []prioritized[T]

func (h minHeap[T]) Len() int { return len(h) }
func (h minHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].pushOrder < h[j].pushOrder
}
func (h minHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *minHeap[T]) Push(x any)   { *h = append(*h, x.(prioritized[T])) }
func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// NetworkQueue holds a set of items (packets or sockets) under one
// queuing discipline, forbidding duplicate membership (spec §4.16:
// "Items are tracked for set-membership to forbid duplicate enqueue").
// T must be comparable so membership can be tracked in a plain map,
// mirroring original_source's HashSet<T> requirement.
type NetworkQueue[T comparable] struct {
	kind       QueueKind
	membership map[T]struct{}
	heap       minHeap[T]
	fifo       []T
	counter    uint64
}

// NewNetworkQueue returns an empty queue using the given discipline.
func NewNetworkQueue[T comparable](kind QueueKind) *NetworkQueue[T] {
	return &NetworkQueue[T]{kind: kind, membership: make(map[T]struct{})}
}

// Len reports the number of queued items.
func (q *NetworkQueue[T]) Len() int { return len(q.membership) }

// Contains reports whether item is currently queued.
func (q *NetworkQueue[T]) Contains(item T) bool {
	_, ok := q.membership[item]
	return ok
}

// TryPush enqueues item, returning PushErrAlreadyQueued if it is
// already present. priority is required (and used) only for
// QueuePriority; it is ignored for QueueFIFO.
func (q *NetworkQueue[T]) TryPush(item T, priority uint64) error {
	if q.Contains(item) {
		return PushErrAlreadyQueued
	}
	q.membership[item] = struct{}{}
	switch q.kind {
	case QueuePriority:
		heap.Push(&q.heap, prioritized[T]{item: item, priority: priority, pushOrder: q.counter})
		q.counter++
	default:
		q.fifo = append(q.fifo, item)
	}
	return nil
}

// Pop removes and returns the next item per the queue's discipline, or
// the zero value and false if empty.
func (q *NetworkQueue[T]) Pop() (T, bool) {
	var zero T
	switch q.kind {
	case QueuePriority:
		if q.heap.Len() == 0 {
			return zero, false
		}
		p := heap.Pop(&q.heap).(prioritized[T])
		delete(q.membership, p.item)
		return p.item, true
	default:
		if len(q.fifo) == 0 {
			return zero, false
		}
		item := q.fifo[0]
		q.fifo = q.fifo[1:]
		delete(q.membership, item)
		return item, true
	}
}

// Clear drops every queued item.
func (q *NetworkQueue[T]) Clear() {
	q.membership = make(map[T]struct{})
	q.heap = nil
	q.fifo = nil
}
