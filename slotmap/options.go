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

package slotmap

// option provides an interface to do work on a Map while it is being
// created.
type option[T any] interface {
	apply(m *Map[T])
}

// option64 is the Map64 counterpart of option.
type option64[T any] interface {
	apply(m *Map64[T])
}

// Allocator specifies an interface for allocating and releasing the
// backing arrays of a Map: the record array and the per-slot meta
// words. The default allocator utilizes Go's builtin make() and allows
// the GC to reclaim memory.
//
// Either Alloc method returning nil is an allocation failure: the
// mutating operation reports failure and the pool is left in its prior
// state.
type Allocator[T any] interface {
	// AllocSlots should return a slice equivalent to make([]T, n), or
	// nil if the allocation cannot be satisfied.
	AllocSlots(n int) []T

	// AllocMeta should return a slice equivalent to make([]uint32, n),
	// or nil if the allocation cannot be satisfied.
	AllocMeta(n int) []uint32

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []T)

	// FreeMeta can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocMeta.
	FreeMeta(v []uint32)
}

// Allocator64 is the Map64 counterpart of Allocator; meta words are 64
// bits wide.
type Allocator64[T any] interface {
	AllocSlots(n int) []T
	AllocMeta(n int) []uint64
	FreeSlots(v []T)
	FreeMeta(v []uint64)
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) AllocSlots(n int) []T     { return make([]T, n) }
func (defaultAllocator[T]) AllocMeta(n int) []uint32 { return make([]uint32, n) }
func (defaultAllocator[T]) FreeSlots(v []T)          {}
func (defaultAllocator[T]) FreeMeta(v []uint32)      {}

type defaultAllocator64[T any] struct{}

func (defaultAllocator64[T]) AllocSlots(n int) []T     { return make([]T, n) }
func (defaultAllocator64[T]) AllocMeta(n int) []uint64 { return make([]uint64, n) }
func (defaultAllocator64[T]) FreeSlots(v []T)          {}
func (defaultAllocator64[T]) FreeMeta(v []uint64)      {}

type allocatorOption[T any] struct {
	allocator Allocator[T]
}

func (op allocatorOption[T]) apply(m *Map[T]) {
	m.alloc = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// Map[T].
func WithAllocator[T any](allocator Allocator[T]) option[T] {
	return allocatorOption[T]{allocator}
}

type allocator64Option[T any] struct {
	allocator Allocator64[T]
}

func (op allocator64Option[T]) apply(m *Map64[T]) {
	m.alloc = op.allocator
}

// WithAllocator64 is an option to specify the Allocator64 to use for a
// Map64[T].
func WithAllocator64[T any](allocator Allocator64[T]) option64[T] {
	return allocator64Option[T]{allocator}
}

type alignOption[T any] struct {
	align uintptr
}

func (op alignOption[T]) apply(m *Map[T]) {
	m.align = op.align
}

// WithAlign is an option to specify the byte alignment of the backing
// block. align must be a power of two.
func WithAlign[T any](align uintptr) option[T] {
	return alignOption[T]{align}
}

type align64Option[T any] struct {
	align uintptr
}

func (op align64Option[T]) apply(m *Map64[T]) {
	m.align = op.align
}

// WithAlign64 is the Map64 counterpart of WithAlign.
func WithAlign64[T any](align uintptr) option64[T] {
	return align64Option[T]{align}
}
