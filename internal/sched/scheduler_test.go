package sched

import (
	"sync"
	"testing"

	"github.com/shadow-sim/shadow-core/internal/workpool"
	"github.com/shadow-sim/shadow-core/pkg/clock"
)

type fakeHost struct {
	mu      sync.Mutex
	name    string
	pending []clock.EmulatedTime
	ran     []clock.EmulatedTime
}

func (h *fakeHost) NextEventTime() (clock.EmulatedTime, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 {
		return 0, false
	}
	min := h.pending[0]
	for _, t := range h.pending[1:] {
		if t.Before(min) {
			min = t
		}
	}
	return min, true
}

func (h *fakeHost) RunRound(barrier clock.EmulatedTime) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var remaining []clock.EmulatedTime
	for _, t := range h.pending {
		if t.Before(barrier) || t == barrier {
			h.ran = append(h.ran, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	h.pending = remaining
}

func TestSchedulerAdvancesToMinBarrierAndDrains(t *testing.T) {
	h1 := &fakeHost{name: "h1", pending: []clock.EmulatedTime{5, 20}}
	h2 := &fakeHost{name: "h2", pending: []clock.EmulatedTime{10}}

	pool := workpool.NewThreadPerCore[Host](2)
	s := New(pool, clock.SimulationTime(0), nil, nil)
	s.AddHost(h1)
	s.AddHost(h2)

	if !s.RunRound() {
		t.Fatal("expected round to run")
	}
	if len(h1.ran) != 1 || h1.ran[0] != 5 {
		t.Fatalf("h1 ran %v, want [5]", h1.ran)
	}
	if len(h2.ran) != 0 {
		t.Fatalf("h2 ran %v, want none (event at 10 > barrier 5)", h2.ran)
	}

	if !s.RunRound() {
		t.Fatal("expected second round to run")
	}
	if len(h2.ran) != 1 || h2.ran[0] != 10 {
		t.Fatalf("h2 ran %v, want [10]", h2.ran)
	}

	if !s.RunRound() {
		t.Fatal("expected third round for h1's event at 20")
	}
	if len(h1.ran) != 2 {
		t.Fatalf("h1 ran %v, want 2 events total", h1.ran)
	}

	if s.RunRound() {
		t.Fatal("expected no more rounds once all hosts idle")
	}
}
