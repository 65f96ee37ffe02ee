package host

import (
	"github.com/google/uuid"

	"github.com/shadow-sim/shadow-core/internal/config"
	"github.com/shadow-sim/shadow-core/internal/memmgr"
	"github.com/shadow-sim/shadow-core/internal/shim"
	"github.com/shadow-sim/shadow-core/internal/sig"
	"github.com/shadow-sim/shadow-core/internal/vfile"
	"github.com/shadow-sim/shadow-core/pkg/shmem"
)

// StartProcess bootstraps a new process on h (spec §4.15's
// execve-equivalent process bootstrap): a fresh descriptor table,
// address space, signal-disposition table and main thread, parented to
// parentPID (0 meaning none — h has no process to reparent to yet, i.e.
// cfg is the host's very first, future init process). The real
// ELF-loading/exec half of this operation is out of scope (spec §1); the
// caller supplies cfg purely for bookkeeping (path, args, environment
// are logged, not interpreted).
func (h *Host) StartProcess(cfg config.ProcessConfig, parentPID int32, client shim.ShimClient) *Process {
	pid := h.allocPID()

	name := "shadow-core-rusage-" + uuid.NewString()
	block, ru, err := shmem.Alloc(h.shm, name, Rusage{})
	if err != nil {
		h.log.Warn("rusage block allocation failed, using unshared memory", "pid", pid, "error", err)
		ru = &Rusage{}
	}

	p := &Process{
		PID:         pid,
		Host:        h,
		ParentPID:   parentPID,
		Descriptors: vfile.NewTable(),
		Memory:      memmgr.New(),
		Actions:     sig.NewActionTable(),
		Threads:     make(map[int32]*Thread),
		mainTID:     pid,
		rusageName:  name,
		rusageBlock: block,
		rusage:      ru,
	}
	p.Threads[pid] = &Thread{TID: pid, Process: p, Client: client}
	p.Threads[pid].Signals.AltStk = sig.NewDisabledAltStack()

	h.processes[pid] = p
	if parentPID != 0 {
		if parent := h.processes[parentPID]; parent != nil {
			parent.children = append(parent.children, pid)
		}
	}
	if h.initPID == 0 {
		h.initPID = pid
	}

	h.log.Debug("process started", "pid", pid, "path", cfg.Path, "parent", parentPID)
	return p
}
