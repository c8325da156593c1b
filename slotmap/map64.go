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

import (
	"fmt"
	"unsafe"

	"github.com/slotpack/slots"
	"github.com/slotpack/slots/internal/uslice"
)

// ID64 is a two-word handle to a record in a Map64.
type ID64 struct {
	Index   uint32
	Version uint32
}

// None64 is returned by Map64 operations that fail or miss.
var None64 = ID64{Index: slots.None, Version: slots.None}

// IsNone reports whether id is the none handle.
func (id ID64) IsNone() bool {
	return id == None64
}

// Map64 is an unordered pool of T addressed by versioned two-word
// handles. It trades four extra meta bytes per slot for a 4G-slot cap
// and a 32-bit version counter. The zero value is not usable; construct
// with New64.
//
// The meta word layout mirrors Map: high half version, low half the
// free-chain link (slots.None terminates) while the slot is free.
type Map64[T any] struct {
	alloc     Allocator64[T]
	items     uslice.Slice[T]
	meta      uslice.Slice[uint64]
	allocated uint32
	used      uint32
	freeHead  uint32
	freeCount uint32
	align     uintptr
}

// New64 constructs a Map64 with the specified initial capacity. If
// initialCapacity is 0 the pool allocates on the first Add.
func New64[T any](initialCapacity int, options ...option64[T]) *Map64[T] {
	m := &Map64[T]{
		alloc:    defaultAllocator64[T]{},
		freeHead: slots.None,
		align:    slots.DefaultAlign,
	}
	for _, op := range options {
		op.apply(m)
	}
	if initialCapacity > 0 {
		m.grow(uint32(initialCapacity))
	}
	m.checkInvariants()
	return m
}

// Add allocates a slot and returns its handle and a pointer to the
// zeroed record. The pointer is valid only until the next mutating
// call; the handle is stable. On allocation failure Add returns
// (None64, nil, false) and the pool is unchanged.
func (m *Map64[T]) Add() (ID64, *T, bool) {
	return m.add(nil)
}

// Copy is Add followed by a bit-copy of v into the new record.
func (m *Map64[T]) Copy(v T) (ID64, *T, bool) {
	return m.add(&v)
}

func (m *Map64[T]) add(src *T) (ID64, *T, bool) {
	if m.freeHead != slots.None {
		i := m.freeHead
		w := m.meta.At(uintptr(i))
		version := uint32(*w >> 32)
		m.freeHead = uint32(*w)
		m.freeCount--
		*w = uint64(version) << 32
		item := m.items.At(uintptr(i))
		var zero T
		*item = zero
		if src != nil {
			*item = *src
		}
		m.checkInvariants()
		return ID64{Index: i, Version: version}, item, true
	}

	if m.used == m.allocated && !m.grow(m.used+1) {
		return None64, nil, false
	}
	i := m.used
	m.used++
	*m.meta.At(uintptr(i)) = 0
	item := m.items.At(uintptr(i))
	if src != nil {
		*item = *src
	}
	m.checkInvariants()
	return ID64{Index: i, Version: 0}, item, true
}

// At returns a pointer to the record named by id, or nil if the handle
// is stale or out of range. The pointer is valid only until the next
// mutating call.
func (m *Map64[T]) At(id ID64) *T {
	if id.Index >= m.used {
		return nil
	}
	if uint32(*m.meta.At(uintptr(id.Index))>>32) != id.Version {
		return nil
	}
	return m.items.At(uintptr(id.Index))
}

// Remove frees the slot named by id and returns a pointer to the dead
// record for one final look, or nil if the handle is stale. The pointer
// is semantically invalid on any subsequent call; do not store it.
func (m *Map64[T]) Remove(id ID64) *T {
	item := m.At(id)
	if item == nil {
		return nil
	}
	*m.meta.At(uintptr(id.Index)) = uint64(id.Version+1)<<32 | uint64(m.freeHead)
	m.freeHead = id.Index
	m.freeCount++
	m.checkInvariants()
	return item
}

// IDOf reconstructs the handle of a live record from a pointer into the
// pool. The caller must know the pointer still refers to a live slot;
// the result for foreign or stale pointers is meaningless.
func (m *Map64[T]) IDOf(p *T) ID64 {
	i := m.items.Index(p)
	return ID64{Index: uint32(i), Version: uint32(*m.meta.At(i) >> 32)}
}

// Burn drains the free list without reclaiming slots. See Map.Burn.
func (m *Map64[T]) Burn() {
	for i := m.freeHead; i != slots.None; {
		w := m.meta.At(uintptr(i))
		next := uint32(*w)
		*w &^= 0xFFFFFFFF
		i = next
	}
	m.freeHead = slots.None
	m.freeCount = 0
	m.checkInvariants()
}

// Count returns the number of live records.
func (m *Map64[T]) Count() uint32 {
	return m.used - m.freeCount
}

// Used returns the pool's high-water mark.
func (m *Map64[T]) Used() uint32 {
	return m.used
}

// Allocated returns the current slot capacity.
func (m *Map64[T]) Allocated() uint32 {
	return m.allocated
}

// Free releases the backing arrays to the allocator. Free is idempotent
// and the pool may be reused afterwards, starting empty.
func (m *Map64[T]) Free() {
	if m.allocated > 0 {
		m.alloc.FreeSlots(m.items.Slice(0, uintptr(m.allocated)))
		m.alloc.FreeMeta(m.meta.Slice(0, uintptr(m.allocated)))
	}
	m.items = uslice.Slice[T]{}
	m.meta = uslice.Slice[uint64]{}
	m.allocated = 0
	m.used = 0
	m.freeHead = slots.None
	m.freeCount = 0
}

func (m *Map64[T]) grow(needed uint32) bool {
	var t T
	perItem := unsafe.Sizeof(t) + unsafe.Sizeof(uint64(0))
	newCap := slots.GrowCapacity(m.allocated, needed, perItem, 4*unsafe.Sizeof(uint32(0)), m.align, slots.None)
	if newCap == 0 {
		return false
	}
	newItems := m.alloc.AllocSlots(int(newCap))
	if newItems == nil {
		return false
	}
	newMeta := m.alloc.AllocMeta(int(newCap))
	if newMeta == nil {
		m.alloc.FreeSlots(newItems)
		return false
	}
	if debug {
		fmt.Printf("slotmap: grow64 %d -> %d\n", m.allocated, newCap)
	}
	if m.allocated > 0 {
		copy(newItems[:m.used], m.items.Slice(0, uintptr(m.used)))
		copy(newMeta[:m.used], m.meta.Slice(0, uintptr(m.used)))
		m.alloc.FreeSlots(m.items.Slice(0, uintptr(m.allocated)))
		m.alloc.FreeMeta(m.meta.Slice(0, uintptr(m.allocated)))
	}
	m.items = uslice.Make(newItems)
	m.meta = uslice.Make(newMeta)
	m.allocated = newCap
	return true
}

func (m *Map64[T]) checkInvariants() {
	if slots.Invariants {
		if m.used > m.allocated {
			panic(fmt.Sprintf("invariant failed: used=%d > allocated=%d", m.used, m.allocated))
		}
		var n uint32
		for i := m.freeHead; i != slots.None; {
			if i >= m.used {
				panic(fmt.Sprintf("invariant failed: free chain visits unused slot %d", i))
			}
			n++
			if n > m.freeCount {
				panic("invariant failed: free chain longer than freeCount (cycle?)")
			}
			i = uint32(*m.meta.At(uintptr(i)))
		}
		if n != m.freeCount {
			panic(fmt.Sprintf("invariant failed: free chain length %d != freeCount %d", n, m.freeCount))
		}
	}
}
