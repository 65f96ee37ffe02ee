package vfile

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/pkg/clock"
)

func TestPipePingPong(t *testing.T) {
	r, w := NewPipePair(4096)
	cbq := &CallbackQueue{}

	n, err := w.Writev([][]byte{[]byte("hello")}, cbq)
	if err != nil || n != 5 {
		t.Fatalf("write: n=%d err=%v", n, err)
	}
	cbq.Drain()

	buf := make([]byte, 16)
	n, err = r.Readv([][]byte{buf}, cbq)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want hello", buf[:n])
	}
	cbq.Drain()

	if err := w.Close(cbq); err != nil {
		t.Fatal(err)
	}
	cbq.Drain()

	n, err = r.Readv([][]byte{buf}, cbq)
	if err != nil {
		t.Fatalf("read after close: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected EOF (n=0), got n=%d", n)
	}
}

func TestPipeWriteNoReadersIsEPIPE(t *testing.T) {
	r, w := NewPipePair(4096)
	cbq := &CallbackQueue{}
	if err := r.Close(cbq); err != nil {
		t.Fatal(err)
	}
	cbq.Drain()

	_, err := w.Writev([][]byte{[]byte("x")}, cbq)
	if err != unix.EPIPE {
		t.Fatalf("got %v, want EPIPE", err)
	}
}

func TestEpollEdgeVsLevel(t *testing.T) {
	r, w := NewPipePair(4096)
	ep := NewEpoll()
	if err := ep.Add(10, r, EpollIn|EpollET, 42); err != nil {
		t.Fatal(err)
	}

	cbq := &CallbackQueue{}
	w.Writev([][]byte{[]byte("x")}, cbq)
	cbq.Drain()

	events := ep.Wait(10)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}

	// Without reading, a second wait should return nothing (no new edge).
	events = ep.Wait(10)
	if len(events) != 0 {
		t.Fatalf("got %d events on re-wait without new edge, want 0", len(events))
	}

	buf := make([]byte, 1)
	r.Readv([][]byte{buf}, cbq)
	cbq.Drain()
	w.Writev([][]byte{[]byte("y")}, cbq)
	cbq.Drain()

	events = ep.Wait(10)
	if len(events) != 1 {
		t.Fatalf("got %d events after new write, want 1", len(events))
	}
}

func TestEpollLevelTriggeredStaysReady(t *testing.T) {
	r, w := NewPipePair(4096)
	ep := NewEpoll()
	ep.Add(1, r, EpollIn, 7)

	cbq := &CallbackQueue{}
	w.Writev([][]byte{[]byte("ab")}, cbq)
	cbq.Drain()

	events := ep.Wait(10)
	if len(events) != 1 {
		t.Fatalf("got %d, want 1", len(events))
	}
	// Data still unread: level-triggered entry must still be ready.
	events = ep.Wait(10)
	if len(events) != 1 {
		t.Fatalf("got %d, want 1 (level-triggered stays ready)", len(events))
	}
}

type fakeScheduler struct {
	now   clock.EmulatedTime
	tasks []func()
}

func (s *fakeScheduler) Now() clock.EmulatedTime { return s.now }
func (s *fakeScheduler) ScheduleAt(at clock.EmulatedTime, fn func()) {
	s.tasks = append(s.tasks, fn)
}

func TestTimerFDOneShot(t *testing.T) {
	sched := &fakeScheduler{}
	tfd := NewTimerFD(sched)
	tfd.SetTime(clock.EmulatedTime(100_000_000), 0) // 100ms

	if tfd.State().Has(StateReadable) {
		t.Fatal("should not be readable before firing")
	}

	// Simulate the scheduled callback firing.
	if len(sched.tasks) != 1 {
		t.Fatalf("expected 1 scheduled task, got %d", len(sched.tasks))
	}
	sched.tasks[0]()

	if !tfd.State().Has(StateReadable) {
		t.Fatal("expected readable after firing")
	}

	buf := make([]byte, 8)
	cbq := &CallbackQueue{}
	n, err := tfd.Readv([][]byte{buf}, cbq)
	if err != nil || n != 8 {
		t.Fatalf("read: n=%d err=%v", n, err)
	}

	tfd.SetStatus(StatusNonblock)
	_, err = tfd.Readv([][]byte{buf}, cbq)
	if err != unix.EWOULDBLOCK {
		t.Fatalf("expected EWOULDBLOCK on empty non-blocking read, got %v", err)
	}
}
