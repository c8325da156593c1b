// Copyright 2026 The Slotpack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package uslice provides semi-ergonomic limited slice-like functionality
// without bounds checking for fixed sized slices. The container packages
// use it for their backing arrays, where indices have already been
// validated against the container's own counts.
package uslice

import "unsafe"

// Slice is a length-less view of a backing array. The zero value reads
// as a nil pointer; callers must not index it.
type Slice[T any] struct {
	ptr unsafe.Pointer
}

// Make wraps the backing array of s.
func Make[T any](s []T) Slice[T] {
	return Slice[T]{ptr: unsafe.Pointer(unsafe.SliceData(s))}
}

// At returns a pointer to the element at index i.
func (s Slice[T]) At(i uintptr) *T {
	var t T
	return (*T)(unsafe.Add(s.ptr, unsafe.Sizeof(t)*i))
}

// Slice returns a Go slice akin to slice[start:end] for a Go builtin slice.
func (s Slice[T]) Slice(start, end uintptr) []T {
	return unsafe.Slice((*T)(s.ptr), end)[start:end]
}

// Ptr returns the base pointer of the backing array.
func (s Slice[T]) Ptr() unsafe.Pointer {
	return s.ptr
}

// IsNil reports whether the view has no backing array.
func (s Slice[T]) IsNil() bool {
	return s.ptr == nil
}

// Index recovers the element index of p, which must point into the
// backing array of s. The result for foreign pointers is meaningless.
func (s Slice[T]) Index(p *T) uintptr {
	var t T
	return (uintptr(unsafe.Pointer(p)) - uintptr(s.ptr)) / unsafe.Sizeof(t)
}

// NoEscape hides a pointer from escape analysis. NoEscape is the
// identity function but escape analysis doesn't think the output depends
// on the input. NoEscape is inlined and currently compiles down to zero
// instructions.
// USE CAREFULLY!
//
//go:nosplit
//go:nocheckptr
func NoEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
