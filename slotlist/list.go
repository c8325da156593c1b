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

// Package slotlist implements a growable ordered sequence of records (a
// "stretchy buffer") backed by a single relocatable array, with an
// optional prefix of reserved words for caller use.
//
// Records are addressed by a dense ID which is simply the record's index
// in the sequence. Growing the list may relocate the backing array: any
// raw pointers obtained from At or Last are invalidated by the next
// mutating call, but IDs stay valid until the list is truncated past
// them. Capacity follows the flex schedule (10, 100, 1000, 10000, then
// doubling) and the backing block is rounded up to the configured byte
// alignment, with surplus bytes absorbed as extra capacity.
//
// A List is NOT goroutine-safe.
package slotlist

import (
	"fmt"
	"unsafe"

	"github.com/slotpack/slots"
	"github.com/slotpack/slots/internal/uslice"
)

const debug = false

// ID names a record in a List. It is the record's index in the sequence.
type ID uint32

// NoneID is returned by mutating operations that fail.
const NoneID = ID(slots.None)

// List is a growable ordered sequence of T. The zero value is not
// usable; construct with New.
type List[T any] struct {
	alloc Allocator[T]
	// ext is the caller's reserved words, preserved across growth. It is
	// counted as part of the metadata prefix when computing the aligned
	// block size, matching the layout of the flat single-block design.
	ext       []uint32
	items     uslice.Slice[T]
	count     uint32
	allocated uint32
	align     uintptr
}

// New constructs a List with the specified initial capacity. If
// initialCapacity is 0 the list starts empty and allocates on the first
// append.
func New[T any](initialCapacity int, options ...option[T]) *List[T] {
	l := &List[T]{
		alloc: defaultAllocator[T]{},
		align: slots.DefaultAlign,
	}
	for _, op := range options {
		op.apply(l)
	}
	if initialCapacity > 0 {
		l.grow(uint32(initialCapacity))
	}
	l.checkInvariants()
	return l
}

// Push appends v, growing the list if needed, and returns the new
// record's ID. On allocation failure it returns (NoneID, false) and the
// list is unchanged.
func (l *List[T]) Push(v T) (ID, bool) {
	if l.count+1 > l.allocated && !l.grow(1) {
		return NoneID, false
	}
	id := l.count
	*l.items.At(uintptr(id)) = v
	l.count++
	l.checkInvariants()
	return ID(id), true
}

// Add reserves n contiguous records and returns the ID of the first
// along with the reserved window. The window is valid only until the
// next mutating call. Add of zero records fails.
func (l *List[T]) Add(n uint32) (ID, []T, bool) {
	if n == 0 {
		return NoneID, nil, false
	}
	if !l.Expand(n) {
		return NoneID, nil, false
	}
	first := l.count - n
	return ID(first), l.items.Slice(uintptr(first), uintptr(l.count)), true
}

// Expand is Add without returning the reserved window. Unlike Add,
// Expand of zero records succeeds and leaves the list unchanged.
func (l *List[T]) Expand(n uint32) bool {
	if n > ^uint32(0)-l.count || l.count+n > l.allocated {
		if !l.grow(n) {
			return false
		}
	}
	l.count += n
	l.checkInvariants()
	return true
}

// Truncate drops the last n records without shrinking the backing
// array. It reports false if n exceeds the current count, in which case
// the list is unchanged.
func (l *List[T]) Truncate(n uint32) bool {
	if n > l.count {
		if slots.Invariants {
			panic(fmt.Sprintf("slotlist: truncate %d with count %d", n, l.count))
		}
		return false
	}
	l.count -= n
	return true
}

// Clear drops all records without shrinking the backing array.
func (l *List[T]) Clear() {
	l.count = 0
}

// Count returns the number of records.
func (l *List[T]) Count() uint32 {
	return l.count
}

// Allocated returns the current record capacity.
func (l *List[T]) Allocated() uint32 {
	return l.allocated
}

// At returns a pointer to record i, or nil if i is out of range. The
// pointer is invalidated by the next mutating call.
func (l *List[T]) At(i ID) *T {
	if uint32(i) >= l.count {
		return nil
	}
	return l.items.At(uintptr(i))
}

// Last returns a pointer to the final record, or nil if the list is
// empty.
func (l *List[T]) Last() *T {
	if l.count == 0 {
		return nil
	}
	return l.items.At(uintptr(l.count - 1))
}

// IDOf recovers the ID of a record from a pointer previously returned
// by At, Add, or Last. The result for foreign pointers is meaningless.
func (l *List[T]) IDOf(p *T) ID {
	return ID(l.items.Index(p))
}

// Ext returns the caller's reserved words. Nil unless WithExt was used.
// The contents survive growth.
func (l *List[T]) Ext() []uint32 {
	return l.ext
}

// Free releases the backing array to the allocator. Free is idempotent
// and the list may be reused afterwards, starting empty.
func (l *List[T]) Free() {
	if l.allocated > 0 {
		l.alloc.FreeItems(l.items.Slice(0, uintptr(l.allocated)))
	}
	l.items = uslice.Slice[T]{}
	l.count = 0
	l.allocated = 0
}

// grow ensures capacity for n more records. On failure the list is
// untouched.
func (l *List[T]) grow(n uint32) bool {
	needed := uint64(l.count) + uint64(n)
	if needed >= uint64(slots.None) {
		return false
	}
	var t T
	meta := uintptr(2+len(l.ext)) * unsafe.Sizeof(uint32(0))
	newCap := slots.GrowCapacity(l.allocated, uint32(needed), unsafe.Sizeof(t), meta, l.align, slots.None)
	if newCap == 0 {
		return false
	}
	newItems := l.alloc.AllocItems(int(newCap))
	if newItems == nil {
		return false
	}
	if debug {
		fmt.Printf("slotlist: grow %d -> %d (need %d)\n", l.allocated, newCap, needed)
	}
	if l.allocated > 0 {
		copy(newItems[:l.count], l.items.Slice(0, uintptr(l.count)))
		l.alloc.FreeItems(l.items.Slice(0, uintptr(l.allocated)))
	}
	l.items = uslice.Make(newItems)
	l.allocated = newCap
	return true
}

func (l *List[T]) checkInvariants() {
	if slots.Invariants {
		if l.count > l.allocated {
			panic(fmt.Sprintf("invariant failed: count=%d > allocated=%d", l.count, l.allocated))
		}
		if l.allocated > 0 && l.items.IsNil() {
			panic("invariant failed: allocated with nil backing array")
		}
	}
}
