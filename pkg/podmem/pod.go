// Package podmem marks types as "plain old data" — safe to reinterpret as a
// raw byte slice and to place in shared memory shared across processes. The
// source project carried two near-duplicate traits for this (one in its
// `pod` crate, one in `bytemuck-util`); this module ships exactly one.
package podmem

import (
	"fmt"
	"reflect"
	"unsafe"
)

// POD is implemented by types for which any bit pattern is a valid value
// and which hold no pointers meaningful only in one process's address
// space.
//
// POD is a marker only: its single unexported method, podMarker, is
// supplied by embedding Mark, and AsBytes/FromBytes require it as a type
// constraint at the byte-slice cast rather than calling it on access.
type POD interface {
	podMarker()
}

// Mark embeds into a struct to declare it POD. It adds no storage (it is an
// empty struct) and no runtime cost.
//
//	type Header struct {
//		podmem.Mark
//		Seq uint64
//		Len uint32
//	}
type Mark struct{}

func (Mark) podMarker() {}

// AsBytes reinterprets v's backing memory as a byte slice without copying.
// The returned slice aliases v; the caller must not retain it past v's
// lifetime, and must not share it with another OS process expecting a
// different struct layout than this process's compiler produced.
func AsBytes[T POD](v *T) []byte {
	size := int(unsafe.Sizeof(*v))
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), size)
}

// FromBytes reinterprets a byte slice as a *T. It panics if b is shorter
// than T or misaligned for T, mirroring the source's "deserialization
// panics on size or alignment mismatch" contract for shared-memory blocks.
func FromBytes[T POD](b []byte) *T {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if len(b) < size {
		panic(fmt.Sprintf("podmem: FromBytes: need %d bytes, have %d", size, len(b)))
	}
	ptr := unsafe.Pointer(&b[0])
	align := unsafe.Alignof(zero)
	if uintptr(ptr)%align != 0 {
		panic(fmt.Sprintf("podmem: FromBytes: buffer misaligned for %T (align %d)", zero, align))
	}
	return (*T)(ptr)
}

// AddressSpaceIndependent reports, via reflection, whether T's static
// layout contains no pointer, unsafe.Pointer, string, slice, map, channel,
// interface or function field — i.e. no value whose meaning depends on
// this process's virtual address space. shmem.Alloc calls this on every
// allocation and refuses to proceed if it returns false; it is the
// runtime stand-in for the source's compile-time derive check.
func AddressSpaceIndependent[T any]() bool {
	var zero T
	return addressSpaceIndependent(reflect.TypeOf(zero))
}

func addressSpaceIndependent(t reflect.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Chan, reflect.Interface, reflect.Func, reflect.UnsafePointer, reflect.String:
		return false
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !addressSpaceIndependent(t.Field(i).Type) {
				return false
			}
		}
		return true
	case reflect.Array:
		return addressSpaceIndependent(t.Elem())
	default:
		return true
	}
}
