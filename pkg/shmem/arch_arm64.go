//go:build arm64

package shmem

// Tuning constants for ARM64. Apple Silicon and some server parts use
// 128-byte lines, but 64 is the safe common denominator across the ARM64
// hosts this simulator actually targets; 4KB pages hold on all of them.
func initArchTuning() {
	archCacheLineSize = 64
	archPageSize = 4096
}
