// Package shmem implements the simulator's shared-memory allocator: named
// blocks of typed, position-independent memory that a peer process (a
// managed thread's shim) can attach by a serialized token. Every type
// placed in a block must satisfy podmem.AddressSpaceIndependent.
package shmem

import (
	"fmt"
	"sync"

	"github.com/shadow-sim/shadow-core/pkg/podmem"
)

// Allocator owns a namespace of blocks for one simulation run. A real
// cross-process deployment would back each block with an mmap'd
// memfd/shm_open region; this simulator runs every "host" as goroutines
// inside one process, so blocks live as plain heap allocations registered
// under a simulation-unique name — the serialized Token is still the only
// thing handed to a peer, preserving the position-independence contract
// that matters for the shim wire protocol (internal/shim) even though no
// address translation actually occurs here.
type Allocator struct {
	mu     sync.Mutex
	blocks map[string]*Block
}

// NewAllocator returns an empty allocator, typically one per simulated
// host (spec §3: "the host's shared-memory block").
func NewAllocator() *Allocator {
	return &Allocator{blocks: make(map[string]*Block)}
}

// Block is a named, typed region of shared memory.
type Block struct {
	name  string
	size  int
	align int
	data  []byte
}

// Token is the position-independent serialized handle to a Block. It
// carries no pointer, only the name and the size/alignment the holder
// must verify against before attaching — any mismatch panics, matching
// the source's "deserialization panics on size or alignment mismatch"
// contract.
type Token struct {
	Name  string
	Size  int
	Align int
}

// Alloc reserves a new named block sized and aligned for T and returns a
// typed view over it. name must be unique within the allocator; padding
// the size up to the architecture cache-line size keeps unrelated blocks
// from sharing a line.
func Alloc[T podmem.POD](a *Allocator, name string, zero T) (*Block, *T, error) {
	if !podmem.AddressSpaceIndependent[T]() {
		return nil, nil, fmt.Errorf("shmem: type %T is not address-space independent", zero)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.blocks[name]; exists {
		return nil, nil, fmt.Errorf("shmem: block %q already exists", name)
	}
	size := sizeOf(zero)
	padded := padToCacheLine(size)
	b := &Block{name: name, size: size, align: alignOf(zero), data: make([]byte, padded)}
	a.blocks[name] = b
	view := podmem.FromBytes[T](b.data)
	*view = zero
	return b, view, nil
}

// Free removes a block from the allocator. Double-free panics, matching
// the source's "deallocate panics if not owned by this allocator"
// contract at the point it matters most (shared-memory leaks across
// simulation runs).
func (a *Allocator) Free(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.blocks[name]; !ok {
		panic(fmt.Sprintf("shmem: Free of unknown block %q", name))
	}
	delete(a.blocks, name)
}

// Serialize returns the block's position-independent token.
func (b *Block) Serialize() Token {
	return Token{Name: b.name, Size: b.size, Align: b.align}
}

// Attach resolves a Token back to a typed view within the same
// allocator, verifying size and alignment the way a peer process would
// verify them against its own compiler's layout of T.
func Attach[T podmem.POD](a *Allocator, tok Token, zero T) (*T, error) {
	a.mu.Lock()
	b, ok := a.blocks[tok.Name]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("shmem: no block named %q", tok.Name)
	}
	if b.size != sizeOf(zero) || b.align != alignOf(zero) {
		panic(fmt.Sprintf("shmem: Attach: block %q size/align mismatch for %T", tok.Name, zero))
	}
	return podmem.FromBytes[T](b.data), nil
}

func padToCacheLine(n int) int {
	if archCacheLineSize == 0 {
		return n
	}
	rem := n % archCacheLineSize
	if rem == 0 {
		return n
	}
	return n + (archCacheLineSize - rem)
}
