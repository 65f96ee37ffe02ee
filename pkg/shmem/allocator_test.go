package shmem

import (
	"testing"

	"github.com/shadow-sim/shadow-core/pkg/podmem"
)

type header struct {
	podmem.Mark
	Seq uint64
	Len uint32
}

func TestAllocAndAttachRoundTrip(t *testing.T) {
	a := NewAllocator()
	block, view, err := Alloc(a, "hdr-1", header{Seq: 1, Len: 2})
	if err != nil {
		t.Fatal(err)
	}
	view.Seq = 42

	tok := block.Serialize()
	attached, err := Attach(a, tok, header{})
	if err != nil {
		t.Fatal(err)
	}
	if attached.Seq != 42 {
		t.Fatalf("got %d, want 42", attached.Seq)
	}
}

func TestAllocDuplicateNameFails(t *testing.T) {
	a := NewAllocator()
	if _, _, err := Alloc(a, "dup", header{}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Alloc(a, "dup", header{}); err == nil {
		t.Fatal("expected error on duplicate name")
	}
}

func TestFreeThenAttachFails(t *testing.T) {
	a := NewAllocator()
	block, _, err := Alloc(a, "tmp", header{})
	if err != nil {
		t.Fatal(err)
	}
	tok := block.Serialize()
	a.Free("tmp")
	if _, err := Attach(a, tok, header{}); err == nil {
		t.Fatal("expected error attaching to freed block")
	}
}

func TestFreeUnknownPanics(t *testing.T) {
	a := NewAllocator()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	a.Free("nope")
}
