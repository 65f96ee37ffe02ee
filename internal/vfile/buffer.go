package vfile

// SharedBuffer is a fixed-capacity byte ring, optionally operating in
// framed mode (one write = one read, used by pipes in O_DIRECT/packet
// mode and by datagram sockets). It tracks reader/writer counts and
// publishes Readable/Writable/NoReaders/NoWriters transitions through an
// embedded StateEventSource (spec §3 "Shared buffer").
type SharedBuffer struct {
	StateEventSource

	capacity int
	data     []byte
	// frames holds lengths of pending framed writes, in order, when
	// framed is true; len(data) is always the sum of frames.
	frames []int
	framed bool

	readers int
	writers int
}

// NewSharedBuffer returns an empty buffer with the given byte capacity.
func NewSharedBuffer(capacity int) *SharedBuffer {
	b := &SharedBuffer{capacity: capacity}
	b.StateEventSource.state = StateActive
	return b
}

// SetFramed switches between stream and packet (framed) mode. Per spec
// §4.7 this is a one-way transition triggered only while the buffer is
// empty; callers (the pipe file) are responsible for enforcing the
// empty-buffer precondition before calling this.
func (b *SharedBuffer) SetFramed(framed bool) {
	b.framed = framed
}

// AddReader/AddWriter/RemoveReader/RemoveWriter adjust the endpoint
// counts and publish NoReaders/NoWriters transitions.
func (b *SharedBuffer) AddReader(cbq *CallbackQueue)    { b.readers++; b.refreshState(cbq) }
func (b *SharedBuffer) AddWriter(cbq *CallbackQueue)    { b.writers++; b.refreshState(cbq) }
func (b *SharedBuffer) RemoveReader(cbq *CallbackQueue) {
	if b.readers > 0 {
		b.readers--
	}
	b.refreshState(cbq)
}
func (b *SharedBuffer) RemoveWriter(cbq *CallbackQueue) {
	if b.writers > 0 {
		b.writers--
	}
	b.refreshState(cbq)
}

func (b *SharedBuffer) refreshState(cbq *CallbackQueue) {
	set, clear := FileState(0), FileState(0)
	if b.readers == 0 {
		set |= StateNoReaders
	} else {
		clear |= StateNoReaders
	}
	if b.writers == 0 {
		set |= StateNoWriters
	} else {
		clear |= StateNoWriters
	}
	b.Adjust(set, clear, cbq)
}

func (b *SharedBuffer) refreshReadWrite(cbq *CallbackQueue) {
	set, clear := FileState(0), FileState(0)
	if len(b.data) > 0 {
		set |= StateReadable
	} else {
		clear |= StateReadable
	}
	if len(b.data) < b.capacity || b.writers == 0 {
		set |= StateWritable
	} else {
		clear |= StateWritable
	}
	b.Adjust(set, clear, cbq)
}

// Len returns the number of bytes currently buffered.
func (b *SharedBuffer) Len() int { return len(b.data) }

// Write appends p, fragmenting into frames no larger than maxFrame when
// in framed mode (spec §4.7: "writes above the atomic-write size are
// fragmented to that size"). It writes as much as fits in the remaining
// capacity and returns the number of bytes accepted.
func (b *SharedBuffer) Write(p []byte, maxFrame int) int {
	room := b.capacity - len(b.data)
	if room <= 0 {
		return 0
	}
	n := len(p)
	if n > room {
		n = room
	}
	if b.framed && maxFrame > 0 {
		written := 0
		for written < n {
			frameLen := n - written
			if frameLen > maxFrame {
				frameLen = maxFrame
			}
			b.data = append(b.data, p[written:written+frameLen]...)
			b.frames = append(b.frames, frameLen)
			written += frameLen
		}
		return written
	}
	b.data = append(b.data, p[:n]...)
	return n
}

// Read drains up to len(p) bytes. In framed mode, it returns at most one
// frame per call even if p has room for more (spec §4.7: "reads return
// one packet at a time").
func (b *SharedBuffer) Read(p []byte) int {
	if len(b.data) == 0 {
		return 0
	}
	limit := len(p)
	if b.framed && len(b.frames) > 0 {
		if b.frames[0] < limit {
			limit = b.frames[0]
		}
		n := copy(p[:limit], b.data)
		b.data = b.data[n:]
		b.frames[0] -= n
		if b.frames[0] == 0 {
			b.frames = b.frames[1:]
		}
		return n
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	return n
}

// RefreshReadWrite recomputes Readable/Writable after a Read/Write call,
// queuing listener notifications on cbq; it does not drain cbq. Exposed
// separately from Read/Write so the pipe/socket caller can batch several
// mutations under one deferred-notification pass.
func (b *SharedBuffer) RefreshReadWrite(cbq *CallbackQueue) {
	b.refreshReadWrite(cbq)
}
