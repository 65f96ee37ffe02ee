package netsim

import (
	"errors"
	"math/rand"

	"github.com/shadow-sim/shadow-core/internal/vfile"
)

// UnixSocketType distinguishes the three Unix domain socket flavors
// (spec §4.9).
type UnixSocketType int

const (
	UnixStream UnixSocketType = iota
	UnixDgram
	UnixSeqPacket
)

// autobind name generation constants (spec §4.9, original_source's
// abstract_unix_ns.rs): 5-character names drawn from a 16-symbol
// alphabet, giving 16^5 = 1,048,576 possible names.
const (
	autobindCharset = "abcdef0123456789"
	autobindNameLen = 5
)

var (
	// ErrNameInUse is returned by Bind when the name is already bound.
	ErrNameInUse = errors.New("netsim: name is already in use")
	// ErrNoNamesAvailable is returned by Autobind once every name in the
	// 16^5 namespace is taken.
	ErrNoNamesAvailable = errors.New("netsim: no names available")
	// ErrNameNotFound is returned by Unbind for an unbound name.
	ErrNameNotFound = errors.New("netsim: name not found")
)

type unixEntry struct {
	socket vfile.File
	handle vfile.Handle
}

// AbstractUnixNamespace is a per-host map from (socket type, name) to
// bound socket, modeling Linux's abstract Unix-socket address space
// (spec §4.9, original_source's AbstractUnixNamespace). A name is freed
// automatically when its socket closes.
type AbstractUnixNamespace struct {
	byType map[UnixSocketType]map[string]unixEntry
}

// NewAbstractUnixNamespace returns an empty namespace with an entry map
// pre-created for each socket type.
func NewAbstractUnixNamespace() *AbstractUnixNamespace {
	ns := &AbstractUnixNamespace{byType: make(map[UnixSocketType]map[string]unixEntry, 3)}
	ns.byType[UnixStream] = make(map[string]unixEntry)
	ns.byType[UnixDgram] = make(map[string]unixEntry)
	ns.byType[UnixSeqPacket] = make(map[string]unixEntry)
	return ns
}

// Lookup returns the socket bound to name under sockType, or false.
func (ns *AbstractUnixNamespace) Lookup(sockType UnixSocketType, name string) (vfile.File, bool) {
	e, ok := ns.byType[sockType][name]
	return e.socket, ok
}

// Bind associates name with socket under sockType, failing with
// ErrNameInUse if already taken.
func (ns *AbstractUnixNamespace) Bind(sockType UnixSocketType, name string, socket vfile.File) error {
	table := ns.byType[sockType]
	if _, exists := table[name]; exists {
		return ErrNameInUse
	}
	handle := socket.AddListener(vfile.StateClosed, func(newState, changed vfile.FileState, cbq *vfile.CallbackQueue) {
		if newState.Has(vfile.StateClosed) {
			delete(ns.byType[sockType], name)
		}
	})
	table[name] = unixEntry{socket: socket, handle: handle}
	return nil
}

// Unbind removes name from the namespace, failing with ErrNameNotFound
// if it was not bound.
func (ns *AbstractUnixNamespace) Unbind(sockType UnixSocketType, name string) error {
	table := ns.byType[sockType]
	e, ok := table[name]
	if !ok {
		return ErrNameNotFound
	}
	e.handle.Remove()
	delete(table, name)
	return nil
}

// Autobind generates a random 5-character name from a 16-symbol
// alphabet, retrying up to 10 times, then falling back to a
// deterministic linear sweep of all 16^5 names (spec §4.9). It returns
// ErrNoNamesAvailable only once the entire namespace is exhausted.
func (ns *AbstractUnixNamespace) Autobind(sockType UnixSocketType, socket vfile.File, rng *rand.Rand) (string, error) {
	table := ns.byType[sockType]

	for i := 0; i < 10; i++ {
		name := randomName(rng)
		if _, exists := table[name]; !exists {
			if err := ns.Bind(sockType, name, socket); err != nil {
				return "", err
			}
			return name, nil
		}
	}

	total := 1
	for i := 0; i < autobindNameLen; i++ {
		total *= len(autobindCharset)
	}
	for i := 0; i < total; i++ {
		name := incrementalName(i)
		if _, exists := table[name]; !exists {
			if err := ns.Bind(sockType, name, socket); err != nil {
				return "", err
			}
			return name, nil
		}
	}

	return "", ErrNoNamesAvailable
}

func randomName(rng *rand.Rand) string {
	buf := make([]byte, autobindNameLen)
	for i := range buf {
		buf[i] = autobindCharset[rng.Intn(len(autobindCharset))]
	}
	return string(buf)
}

// incrementalName returns the x'th name (base-16-alphabet, fixed
// width) in the linear sweep, matching
// original_source's incremental_name.
func incrementalName(x int) string {
	buf := make([]byte, autobindNameLen)
	base := len(autobindCharset)
	for i := autobindNameLen - 1; i >= 0; i-- {
		buf[i] = autobindCharset[x%base]
		x /= base
	}
	return string(buf)
}
