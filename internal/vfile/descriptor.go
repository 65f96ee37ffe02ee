package vfile

import "golang.org/x/sys/unix"

// DescFlags are per-descriptor flags independent of the underlying
// File's status (spec §3: "notably close-on-exec").
type DescFlags uint32

const (
	DescCloexec DescFlags = 1 << iota
)

// File is the common contract every open-file kind implements (spec §3).
type File interface {
	Readv(iov [][]byte, cbq *CallbackQueue) (int, error)
	Writev(iov [][]byte, cbq *CallbackQueue) (int, error)
	Ioctl(req uintptr, arg []byte, cbq *CallbackQueue) error
	Close(cbq *CallbackQueue) error
	State() FileState
	Status() FileStatus
	SetStatus(FileStatus)
	AddListener(filter FileState, notify func(newState, changed FileState, cbq *CallbackQueue)) Handle
}

// Descriptor is a table entry: either a new-style OpenFile or a legacy
// C-file pointer (modeled here as an opaque LegacyPointer, spec §4.5
// "Legacy listeners").
type Descriptor struct {
	File    File
	Legacy  *LegacyPointer
	Flags   DescFlags
}

// LegacyPointer is the Go analog of the source's HostTreePointer: an
// opaque handle valid only while the owning host's lock is held. New
// code should never construct one; it exists solely so pre-existing
// legacy listener plumbing (none shipped in this module) has a type to
// target if ever reintroduced.
type LegacyPointer struct {
	ptr any
}

// Table is the per-process descriptor table (spec §3): a mapping from
// small non-negative integers to Descriptors, enforcing uniqueness of
// live descriptor numbers and idempotent close.
type Table struct {
	entries map[int32]*Descriptor
	nextFD  int32
}

// NewTable returns an empty descriptor table. Descriptor numbers start
// at 3 to leave room for the conventional stdin/stdout/stderr (0,1,2),
// matching how every POSIX process table begins.
func NewTable() *Table {
	return &Table{entries: make(map[int32]*Descriptor), nextFD: 3}
}

// Insert reserves the lowest free descriptor number >= 3, stores d there
// and returns it.
func (t *Table) Insert(d *Descriptor) int32 {
	for fd := int32(3); ; fd++ {
		if _, exists := t.entries[fd]; !exists {
			t.entries[fd] = d
			return fd
		}
	}
}

// InsertAt stores d at an explicit fd, for dup2-style semantics. It
// fails with EBADF-equivalent if fd is negative; any existing entry at
// fd is closed first (dup2 semantics), matching the real syscall.
func (t *Table) InsertAt(fd int32, d *Descriptor, cbq *CallbackQueue) error {
	if fd < 0 {
		return unix.EBADF
	}
	if existing, ok := t.entries[fd]; ok {
		closeDescriptor(existing, cbq)
	}
	t.entries[fd] = d
	return nil
}

// Get returns the descriptor at fd, or nil if not present.
func (t *Table) Get(fd int32) *Descriptor {
	return t.entries[fd]
}

// Close removes and closes the descriptor at fd. A second Close of the
// same fd returns EBADF, since removal already happened (spec §8
// round-trip property).
func (t *Table) Close(fd int32, cbq *CallbackQueue) error {
	d, ok := t.entries[fd]
	if !ok {
		return unix.EBADF
	}
	delete(t.entries, fd)
	closeDescriptor(d, cbq)
	return nil
}

func closeDescriptor(d *Descriptor, cbq *CallbackQueue) {
	if d.File != nil {
		_ = d.File.Close(cbq)
	}
}

// Len reports the number of live descriptors, used by metrics (spec §6
// "open file count").
func (t *Table) Len() int { return len(t.entries) }

// CloseAll closes and removes every descriptor, in no particular order.
// Used by process exit_group (spec §4.15): a dying process's open files
// go away with it regardless of which fd numbers they happened to hold.
func (t *Table) CloseAll(cbq *CallbackQueue) {
	for fd, d := range t.entries {
		delete(t.entries, fd)
		closeDescriptor(d, cbq)
	}
}
