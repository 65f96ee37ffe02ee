package sig

// ThreadSignals is one thread's pending and blocked signal sets plus
// its alternate signal stack (spec: "A thread has a blocked-signal mask,
// an optional sigaltstack, and a 'syscall condition' when suspended").
type ThreadSignals struct {
	Pending Set
	Blocked Set
	AltStk  AltStack
}

// Raise adds sig to the pending set (kill/tgkill/timer-synthesized
// delivery all funnel through this).
func (t *ThreadSignals) Raise(sig int) { t.Pending = t.Pending.Add(sig) }

// Unblocked returns the signals in Pending that are not currently
// blocked — the candidate set process_signals chooses from.
func (t *ThreadSignals) Unblocked() Set { return t.Pending.And(t.Blocked.Not()) }

// Delivery describes one signal handler invocation process_signals
// decided to perform.
type Delivery struct {
	Signal      int
	UseAltStack bool
	// RestoreBlocked is the blocked mask to restore once the handler
	// returns: the pre-invocation mask, since invocation only ever adds
	// bits (the signal itself, plus the action's Mask), never removes.
	RestoreBlocked Set
}

// Result is process_signals' report for one pass (spec §4.12): it may
// terminate the thread's process outright (a TERM/CORE default action),
// or deliver zero or more handler invocations, tracking whether every
// one of them was SA_RESTART (a syscall interrupted partway through
// signal processing only restarts if ALL delivered handlers allow it).
type Result struct {
	Exited        bool
	ExitSignal    int
	Deliveries    []Delivery
	AllRestartable bool
}

// ProcessSignals repeatedly takes the lowest-numbered pending unblocked
// signal and applies its disposition until none remain or the process
// exits, mutating ts in place (per-signal: clearing Pending, adjusting
// Blocked for the duration of a handler call is the caller's job once
// the handler itself "returns" — see Delivery.RestoreBlocked).
func ProcessSignals(ts *ThreadSignals, table *ActionTable) Result {
	res := Result{AllRestartable: true}
	for {
		sig, ok := ts.Unblocked().Lowest()
		if !ok {
			return res
		}
		ts.Pending = ts.Pending.Del(sig)

		action := table.Get(sig)
		switch action.Disposition {
		case DispIgnore:
			continue
		case DispDefault:
			switch DefaultActionFor(sig) {
			case ActionIgnore:
				continue
			case ActionTerm, ActionCore:
				res.Exited = true
				res.ExitSignal = sig
				return res
			case ActionStop, ActionCont:
				// Unimplemented per spec §4.12; treated as a no-op
				// rather than a guest-visible error.
				continue
			}
		case DispHandler:
			before := ts.Blocked
			newBlocked := ts.Blocked.Add(sig).Or(action.Mask)
			ts.Blocked = newBlocked
			useAlt := action.Flags&FlagOnStack != 0 && !ts.AltStk.Disabled()
			res.Deliveries = append(res.Deliveries, Delivery{
				Signal:         sig,
				UseAltStack:    useAlt,
				RestoreBlocked: before,
			})
			if action.Flags&FlagRestart == 0 {
				res.AllRestartable = false
			}
			if action.Flags&FlagResetHand != 0 {
				table.Set(sig, Sigaction{})
			}
		}
	}
}
