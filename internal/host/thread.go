package host

import (
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/sig"
)

// Thread is one simulated thread (spec §3 "Thread"): its own pending and
// blocked signal sets, its alternate signal stack, and the shim
// connection the manager replies to once its current syscall completes.
// Grounded on original_source's host/thread.rs Thread trait, whose
// get_process_id/get_host_id accessors become plain struct linkage
// (Process, and Process.Host) rather than trait methods, since nothing
// in this module's design needs Thread to be an interface.
type Thread struct {
	TID     int32
	Process *Process
	Signals sig.ThreadSignals
	Client  shim.ShimClient
}
