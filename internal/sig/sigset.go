// Package sig implements signal delivery and signal-driven timers (spec
// §4.12 "Signal processing", §4.13): a per-process pending set and
// sigaction table, a thread's blocked-signal mask and sigaltstack, and
// itimer/alarm/clock_nanosleep scheduling reusing vfile's Timer.
package sig

import (
	"golang.org/x/sys/unix"

	"github.com/shadow-sim/shadow-core/pkg/podmem"
)

// MaxSignal is the highest signal number this module tracks: standard
// signals 1-31 plus real-time signals 32-64 (spec's
// SHD_SIGRT_MIN..SHD_SIGRT_MAX), matching signal(7).
const MaxSignal = 64

// Set is a 64-bit kernel-compatible sigset_t (one bit per signal,
// 1-indexed so bit (n-1) is signal n), matching the source's
// shd_kernel_sigset_t layout on x86_64.
type Set struct {
	podmem.Mark
	val uint64
}

// Empty and Full are the two sigset_t extremes.
var (
	Empty = Set{}
	Full  = Set{val: ^uint64(0)}
)

func bit(sig int) uint64 {
	return 1 << uint(sig-1)
}

// Has reports whether sig is a member of s.
func (s Set) Has(sig int) bool { return s.val&bit(sig) != 0 }

// Add returns s with sig added.
func (s Set) Add(sig int) Set { return Set{val: s.val | bit(sig)} }

// Del returns s with sig removed.
func (s Set) Del(sig int) Set { return Set{val: s.val &^ bit(sig)} }

// Or returns the union of s and o.
func (s Set) Or(o Set) Set { return Set{val: s.val | o.val} }

// And returns the intersection of s and o.
func (s Set) And(o Set) Set { return Set{val: s.val & o.val} }

// Not returns the complement of s.
func (s Set) Not() Set { return Set{val: ^s.val} }

// IsEmpty reports whether s has no members.
func (s Set) IsEmpty() bool { return s.val == 0 }

// Lowest returns the lowest-numbered member signal, and false if s is
// empty, per spec §4.12's "process_signals" delivery order ("take the
// lowest-numbered pending unblocked signal").
func (s Set) Lowest() (int, bool) {
	if s.val == 0 {
		return 0, false
	}
	for i := 1; i <= MaxSignal; i++ {
		if s.Has(i) {
			return i, true
		}
	}
	return 0, false // unreachable: val != 0 implies some bit is set
}

// DefaultAction is the outcome of signal(7)'s default disposition table.
type DefaultAction int

const (
	ActionTerm DefaultAction = iota
	ActionIgnore
	ActionCore
	ActionStop
	ActionCont
)

// defaultActionBySignal mirrors the source's defaultaction() match
// (shadow-shim-helper-rs/src/signals.rs) for the signals listed here;
// signals absent from the map get ActionTerm from DefaultActionFor.
var defaultActionBySignal = map[int]DefaultAction{
	int(unix.SIGCONT):   ActionCont,
	int(unix.SIGABRT):   ActionCore,
	int(unix.SIGBUS):    ActionCore,
	int(unix.SIGFPE):    ActionCore,
	int(unix.SIGILL):    ActionCore,
	int(unix.SIGQUIT):   ActionCore,
	int(unix.SIGSEGV):   ActionCore,
	int(unix.SIGSYS):    ActionCore,
	int(unix.SIGTRAP):   ActionCore,
	int(unix.SIGXCPU):   ActionCore,
	int(unix.SIGXFSZ):   ActionCore,
	int(unix.SIGCHLD):   ActionIgnore,
	int(unix.SIGURG):    ActionIgnore,
	int(unix.SIGWINCH):  ActionIgnore,
	int(unix.SIGSTOP):   ActionStop,
	int(unix.SIGTSTP):   ActionStop,
	int(unix.SIGTTIN):   ActionStop,
	int(unix.SIGTTOU):   ActionStop,
	int(unix.SIGALRM):   ActionTerm,
	int(unix.SIGHUP):    ActionTerm,
	int(unix.SIGINT):    ActionTerm,
	int(unix.SIGIO):     ActionTerm,
	int(unix.SIGKILL):   ActionTerm,
	int(unix.SIGPIPE):   ActionTerm,
	int(unix.SIGPROF):   ActionTerm,
	int(unix.SIGPWR):    ActionTerm,
	int(unix.SIGSTKFLT): ActionTerm,
	int(unix.SIGTERM):   ActionTerm,
	int(unix.SIGUSR1):   ActionTerm,
	int(unix.SIGUSR2):   ActionTerm,
	int(unix.SIGVTALRM): ActionTerm,
}

// DefaultActionFor returns sig's default disposition. Signals with no
// entry in the table (e.g. real-time signals) default to ActionTerm,
// matching the kernel's actual behavior for unmapped RT signals (the
// source logs an error and falls back to CORE for truly unexpected
// values; ordinary unmapped signals here are real-time signals, whose
// real default is TERM).
func DefaultActionFor(sig int) DefaultAction {
	if a, ok := defaultActionBySignal[sig]; ok {
		return a
	}
	return ActionTerm
}
