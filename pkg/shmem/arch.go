package shmem

// Set once during init time, populated by the arch-specific file built
// for GOARCH. The indirection exists so the allocator's tuning constants
// come from exactly one build-tagged file, the same pattern the teacher
// uses to pick a buffer size per architecture.
var (
	archCacheLineSize int
	archPageSize      int
)

func init() {
	initArchTuning()
}
