package host

import (
	"testing"

	"github.com/shadow-sim/shadow-core/internal/config"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/sig"
	"github.com/shadow-sim/shadow-core/internal/syscallcond"
	"github.com/shadow-sim/shadow-core/internal/vfile"
)

type fakeShimClient struct {
	replies []shim.ManagerReply
}

func (c *fakeShimClient) Send(r shim.ManagerReply) { c.replies = append(c.replies, r) }

func TestStartProcessRegistersUnderHostAndInit(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")

	init := h.StartProcess(config.ProcessConfig{Path: "/sbin/init"}, 0, &fakeShimClient{})
	if init.PID != 1 {
		t.Fatalf("got pid %d, want 1", init.PID)
	}
	if h.Process(init.PID) != init {
		t.Fatal("expected StartProcess to register the process under its pid")
	}

	child := h.StartProcess(config.ProcessConfig{Path: "/bin/sh"}, init.PID, &fakeShimClient{})
	if child.PID != 2 {
		t.Fatalf("got pid %d, want 2", child.PID)
	}
	if len(init.children) != 1 || init.children[0] != child.PID {
		t.Fatalf("got children %v, want [%d]", init.children, child.PID)
	}
}

func TestProcessExitAutoReapsWhenParentIgnoresSIGCHLD(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")
	parent := h.StartProcess(config.ProcessConfig{}, 0, &fakeShimClient{})
	parent.Actions.Set(sigchldNum, sig.Sigaction{Disposition: sig.DispIgnore})
	child := h.StartProcess(config.ProcessConfig{}, parent.PID, &fakeShimClient{})

	cbq := &vfile.CallbackQueue{}
	child.Exit(cbq, 0)

	if h.Process(child.PID) != nil {
		t.Fatal("expected an ignored-SIGCHLD parent to auto-reap its exited child")
	}
	if len(parent.children) != 0 {
		t.Fatalf("got children %v, want none left after auto-reap", parent.children)
	}
}

func TestProcessExitLeavesZombieAndWait4Reaps(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")
	parent := h.StartProcess(config.ProcessConfig{}, 0, &fakeShimClient{})
	child := h.StartProcess(config.ProcessConfig{}, parent.PID, &fakeShimClient{})

	cbq := &vfile.CallbackQueue{}
	child.Exit(cbq, 7)

	if h.Process(child.PID) == nil {
		t.Fatal("expected the child to remain a reapable zombie")
	}
	if !parent.Threads[parent.mainTID].Signals.Pending.Has(sigchldNum) {
		t.Fatal("expected SIGCHLD to be pending on the parent's main thread")
	}

	pid, status, ok := parent.Wait4(0)
	if !ok {
		t.Fatal("expected wait4(-1-equivalent) to reap the zombie child")
	}
	if pid != child.PID || status != 7 {
		t.Fatalf("got (pid=%d, status=%d), want (pid=%d, status=7)", pid, status, child.PID)
	}
	if h.Process(child.PID) != nil {
		t.Fatal("expected the zombie to be gone from the host after wait4")
	}
}

func TestProcessExitReparentsSurvivingChildrenToInit(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")
	init := h.StartProcess(config.ProcessConfig{}, 0, &fakeShimClient{})
	mid := h.StartProcess(config.ProcessConfig{}, init.PID, &fakeShimClient{})
	grandchild := h.StartProcess(config.ProcessConfig{}, mid.PID, &fakeShimClient{})

	init.Actions.Set(sigchldNum, sig.Sigaction{Disposition: sig.DispIgnore})

	cbq := &vfile.CallbackQueue{}
	mid.Exit(cbq, 0)

	if grandchild.ParentPID != init.PID {
		t.Fatalf("got grandchild parent %d, want init pid %d", grandchild.ParentPID, init.PID)
	}
	found := false
	for _, cpid := range init.children {
		if cpid == grandchild.PID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected init's children %v to include reparented grandchild %d", init.children, grandchild.PID)
	}
}

func TestWaitChildNotifiesOnMatchingExit(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")
	parent := h.StartProcess(config.ProcessConfig{}, 0, &fakeShimClient{})
	child := h.StartProcess(config.ProcessConfig{}, parent.PID, &fakeShimClient{})

	var notifiedPID int
	var notifiedEvent syscallcond.ChildEvent
	cancel := parent.WaitChild([]int{int(child.PID)}, syscallcond.ChildExited, func(pid int, ev syscallcond.ChildEvent) {
		notifiedPID = pid
		notifiedEvent = ev
	})
	defer cancel()

	cbq := &vfile.CallbackQueue{}
	child.Exit(cbq, 3)

	if notifiedPID != int(child.PID) || notifiedEvent != syscallcond.ChildExited {
		t.Fatalf("got (pid=%d, event=%v), want (pid=%d, event=%v)", notifiedPID, notifiedEvent, child.PID, syscallcond.ChildExited)
	}

	pid, status, ok := parent.Wait4(child.PID)
	if !ok || pid != child.PID || status != 3 {
		t.Fatalf("got (pid=%d,status=%d,ok=%v), want (%d,3,true)", pid, status, ok, child.PID)
	}
}

func TestWaitChildCancelStopsFutureNotifications(t *testing.T) {
	h := newTestHost(t, "10.0.0.1")
	parent := h.StartProcess(config.ProcessConfig{}, 0, &fakeShimClient{})
	child := h.StartProcess(config.ProcessConfig{}, parent.PID, &fakeShimClient{})

	called := false
	cancel := parent.WaitChild(nil, syscallcond.ChildExited, func(pid int, ev syscallcond.ChildEvent) {
		called = true
	})
	cancel()

	cbq := &vfile.CallbackQueue{}
	child.Exit(cbq, 0)

	if called {
		t.Fatal("expected a canceled waiter not to be notified")
	}
}
