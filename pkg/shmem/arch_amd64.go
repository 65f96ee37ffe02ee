//go:build amd64

package shmem

// Tuning constants for AMD64: 64-byte cache lines, 4KB pages. Blocks are
// padded to a cache-line multiple so two unrelated POD values never share
// a line (false sharing across the manager/shim boundary is expensive
// precisely because it's cross-process, not just cross-core).
func initArchTuning() {
	archCacheLineSize = 64
	archPageSize = 4096
}
