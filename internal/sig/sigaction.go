package sig

import "golang.org/x/sys/unix"

// Disposition is what a signal's sigaction entry currently resolves to.
type Disposition int

const (
	DispDefault Disposition = iota
	DispIgnore
	DispHandler
)

// Action-flag bits relevant to delivery (spec §4.12). Named locally
// rather than re-exporting unix.SA_* so callers don't need a second
// import for the handful this package actually inspects.
const (
	FlagResetHand = int32(unix.SA_RESETHAND)
	FlagOnStack   = int32(unix.SA_ONSTACK)
	FlagRestart   = int32(unix.SA_RESTART)
	FlagSigInfo   = int32(unix.SA_SIGINFO)
	FlagNoCldWait = int32(unix.SA_NOCLDWAIT)
	FlagNoCldStop = int32(unix.SA_NOCLDSTOP)
)

// Sigaction is one signal's disposition: whether it's handled, ignored,
// or left at the kernel default, plus the mask to add and flags to
// apply while a handler runs.
type Sigaction struct {
	Disposition Disposition
	Mask        Set
	Flags       int32
}

// ActionTable is a process-wide table of one Sigaction per signal
// number (sigaction is process-wide, not per-thread, per POSIX).
type ActionTable struct {
	entries [MaxSignal + 1]Sigaction
}

// NewActionTable returns a table with every signal at DispDefault,
// matching a freshly-exec'd process.
func NewActionTable() *ActionTable { return &ActionTable{} }

// Set installs sig's disposition. SIGKILL and SIGSTOP are not settable
// per POSIX; callers that attempt it get silently ignored here — the
// syscall handler layer is responsible for returning EINVAL for those,
// since that's a guest-visible error this package doesn't produce.
func (t *ActionTable) Set(sig int, a Sigaction) {
	if sig < 1 || sig > MaxSignal {
		return
	}
	t.entries[sig] = a
}

// Get returns sig's current Sigaction.
func (t *ActionTable) Get(sig int) Sigaction {
	if sig < 1 || sig > MaxSignal {
		return Sigaction{}
	}
	return t.entries[sig]
}

// AltStack mirrors sigaltstack(2)'s struct: a base address/size pair
// the handler-invocation path switches to when SA_ONSTACK and the stack
// isn't disabled (spec §4.12).
type AltStack struct {
	Addr uintptr
	Size uintptr
	Autodisarm bool
	disabled   bool
}

// NewDisabledAltStack returns the SS_DISABLE state a fresh thread starts
// in (no alternate signal stack configured).
func NewDisabledAltStack() AltStack { return AltStack{disabled: true} }

// Disabled reports whether SS_DISABLE is set.
func (a AltStack) Disabled() bool { return a.disabled }

// Disable marks the alt stack unusable (sigaltstack(2) with SS_DISABLE).
func (a *AltStack) Disable() { *a = AltStack{disabled: true} }

// Configure installs an active alternate stack.
func (a *AltStack) Configure(addr, size uintptr, autodisarm bool) {
	*a = AltStack{Addr: addr, Size: size, Autodisarm: autodisarm}
}
