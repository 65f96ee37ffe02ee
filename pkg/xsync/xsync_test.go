package xsync

import (
	"testing"
	"time"
)

func TestMutexLockUnlock(t *testing.T) {
	m := NewMutex(42)
	g := m.Lock()
	if *g.Value() != 42 {
		t.Fatalf("got %d, want 42", *g.Value())
	}
	*g.Value() = 7
	g.Unlock()

	g2 := m.Lock()
	if *g2.Value() != 7 {
		t.Fatalf("got %d, want 7", *g2.Value())
	}
	g2.Unlock()
}

func TestMutexContention(t *testing.T) {
	m := NewMutex(0)
	done := make(chan struct{})
	go func() {
		g := m.Lock()
		time.Sleep(10 * time.Millisecond)
		*g.Value() = 1
		g.Unlock()
		close(done)
	}()
	time.Sleep(2 * time.Millisecond)
	g := m.Lock()
	g.Unlock()
	<-done
	g2 := m.Lock()
	defer g2.Unlock()
	if *g2.Value() != 1 {
		t.Fatalf("got %d, want 1", *g2.Value())
	}
}

func TestMutexDisconnectReconnect(t *testing.T) {
	m := NewMutex("x")
	g := m.Lock()
	g.Disconnect()

	g2 := m.Reconnect()
	if *g2.Value() != "x" {
		t.Fatalf("got %q, want x", *g2.Value())
	}
	g2.Unlock()
}

func TestChannelSendReceive(t *testing.T) {
	c := NewChannel[int]()
	c.Send(99)
	v, err := c.Receive()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("got %d, want 99", v)
	}
}

func TestChannelBlockingReceive(t *testing.T) {
	c := NewChannel[string]()
	result := make(chan string, 1)
	go func() {
		v, err := c.Receive()
		if err != nil {
			t.Error(err)
			return
		}
		result <- v
	}()
	time.Sleep(5 * time.Millisecond)
	c.Send("hello")
	select {
	case v := <-result:
		if v != "hello" {
			t.Fatalf("got %q, want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for receive")
	}
}

func TestChannelWriterDied(t *testing.T) {
	c := NewChannel[int]()
	errc := make(chan error, 1)
	go func() {
		_, err := c.Receive()
		errc <- err
	}()
	time.Sleep(5 * time.Millisecond)
	c.MarkWriterDead()
	select {
	case err := <-errc:
		if err != ErrWriterIsDead {
			t.Fatalf("got %v, want ErrWriterIsDead", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
}

func TestChannelSendOnNonEmptyPanics(t *testing.T) {
	c := NewChannel[int]()
	c.Send(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double send")
		}
	}()
	c.Send(2)
}
