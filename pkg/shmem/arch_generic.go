//go:build !amd64 && !arm64

package shmem

// Conservative tuning for architectures this simulator hasn't been
// specifically tuned for.
func initArchTuning() {
	archCacheLineSize = 64
	archPageSize = 4096
}
