package shmem

import "unsafe"

func sizeOf[T any](zero T) int {
	return int(unsafe.Sizeof(zero))
}

func alignOf[T any](zero T) int {
	return int(unsafe.Alignof(zero))
}
