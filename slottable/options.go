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

package slottable

// option provides an interface to do work on a Table while it is being
// created.
type option[E any] interface {
	apply(t *Table[E])
}

// Allocator specifies an interface for allocating and releasing the
// backing arrays of a Table: the bucket array and the dense entry
// array. The default allocator utilizes Go's builtin make() and allows
// the GC to reclaim memory.
//
// Either Alloc method returning nil is an allocation failure: the
// triggering Insert reports failure and the table is left in its prior
// state.
type Allocator[E any] interface {
	// AllocBuckets should return a slice equivalent to make([]uint32, n),
	// or nil if the allocation cannot be satisfied.
	AllocBuckets(n int) []uint32

	// AllocEntries should return a slice equivalent to
	// make([]Entry[E], n), or nil if the allocation cannot be satisfied.
	AllocEntries(n int) []Entry[E]

	// FreeBuckets can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets.
	FreeBuckets(v []uint32)

	// FreeEntries can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocEntries.
	FreeEntries(v []Entry[E])
}

type defaultAllocator[E any] struct{}

func (defaultAllocator[E]) AllocBuckets(n int) []uint32   { return make([]uint32, n) }
func (defaultAllocator[E]) AllocEntries(n int) []Entry[E] { return make([]Entry[E], n) }
func (defaultAllocator[E]) FreeBuckets(v []uint32)        {}
func (defaultAllocator[E]) FreeEntries(v []Entry[E])      {}

type allocatorOption[E any] struct {
	allocator Allocator[E]
}

func (op allocatorOption[E]) apply(t *Table[E]) {
	t.alloc = op.allocator
}

// WithAllocator is an option to specify the Allocator to use for a
// Table[E].
func WithAllocator[E any](allocator Allocator[E]) option[E] {
	return allocatorOption[E]{allocator}
}
