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

// Package slotmap implements an unordered pool of records indexed by
// stable, versioned integer handles. Removing a record puts its slot on
// an internal free list for reuse; the slot's version counter is bumped
// so that stale handles held by the caller resolve to nothing instead of
// to the slot's next tenant.
//
// Two variants are provided. Map packs its handle into a single uint32 -
// low 24 bits of slot index, high 8 bits of version - capping the pool
// below 16M slots. Map64 spends a pair of uint32 words per handle, raising
// the cap to 4G slots and making version collisions from wraparound
// vanishingly unlikely.
//
// The records live in one densely packed backing array. Growth may
// relocate the array: raw pointers are invalidated, handles are not.
// Iteration order is deliberately unspecified; the pool is a bag, not a
// sequence.
//
// Neither variant is goroutine-safe.
package slotmap

import (
	"fmt"
	"unsafe"

	"github.com/slotpack/slots"
	"github.com/slotpack/slots/internal/uslice"
)

const debug = false

// ID is a packed handle to a record in a Map: low 24 bits of slot
// index, high 8 bits of version.
type ID uint32

const (
	// MaxIndex is the largest slot index a Map can address. It doubles
	// as the in-band terminator of the free chain, so a Map holds at
	// most MaxIndex slots and never hands out an id with this index.
	MaxIndex uint32 = 0x00FFFFFF

	// NoneID is returned by operations that fail or miss.
	NoneID = ID(slots.None)

	versionShift = 24
)

// MakeID packs a slot index and version into an ID.
func MakeID(index uint32, version uint8) ID {
	return ID(index&MaxIndex | uint32(version)<<versionShift)
}

// Index returns the slot index encoded in id.
func (id ID) Index() uint32 {
	return uint32(id) & MaxIndex
}

// Version returns the version encoded in id.
func (id ID) Version() uint8 {
	return uint8(id >> versionShift)
}

// Map is an unordered pool of T addressed by versioned 32-bit handles.
// The zero value is not usable; construct with New.
//
// Each slot has a meta word shadowing the record array: the high byte is
// the slot's current version and, while the slot sits on the free list,
// the low 24 bits link to the next free slot (MaxIndex terminates). For
// a free slot the version byte already holds the version the slot will
// advertise to its next tenant.
type Map[T any] struct {
	alloc     Allocator[T]
	items     uslice.Slice[T]
	meta      uslice.Slice[uint32]
	allocated uint32
	used      uint32
	freeHead  uint32
	freeCount uint32
	align     uintptr
}

// New constructs a Map with the specified initial capacity. If
// initialCapacity is 0 the pool allocates on the first Add.
func New[T any](initialCapacity int, options ...option[T]) *Map[T] {
	m := &Map[T]{
		alloc:    defaultAllocator[T]{},
		freeHead: MaxIndex,
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
// call; the handle is stable. On allocation failure, or when the next
// flex growth step would take the pool past MaxIndex slots, Add returns
// (NoneID, nil, false) and the pool is unchanged.
func (m *Map[T]) Add() (ID, *T, bool) {
	return m.add(nil)
}

// Copy is Add followed by a bit-copy of v into the new record.
func (m *Map[T]) Copy(v T) (ID, *T, bool) {
	return m.add(&v)
}

func (m *Map[T]) add(src *T) (ID, *T, bool) {
	if m.freeHead != MaxIndex {
		i := m.freeHead
		w := m.meta.At(uintptr(i))
		version := uint8(*w >> versionShift)
		m.freeHead = *w & MaxIndex
		m.freeCount--
		*w = uint32(version) << versionShift
		item := m.items.At(uintptr(i))
		var zero T
		*item = zero
		if src != nil {
			*item = *src
		}
		if debug {
			fmt.Printf("slotmap: reuse slot %d version %d\n", i, version)
		}
		m.checkInvariants()
		return MakeID(i, version), item, true
	}

	if m.used >= MaxIndex {
		return NoneID, nil, false
	}
	if m.used == m.allocated && !m.grow(m.used+1) {
		return NoneID, nil, false
	}
	i := m.used
	m.used++
	*m.meta.At(uintptr(i)) = 0
	item := m.items.At(uintptr(i))
	if src != nil {
		*item = *src
	}
	m.checkInvariants()
	return MakeID(i, 0), item, true
}

// At returns a pointer to the record named by id, or nil if the handle
// is stale or out of range. The pointer is valid only until the next
// mutating call.
//
// Versions are 8 bits wide and wrap; slots are never retired. A handle
// stale by an exact multiple of 256 generations of its slot may
// therefore spuriously resolve. Callers that cannot tolerate that
// should use Map64.
func (m *Map[T]) At(id ID) *T {
	i := id.Index()
	if i >= m.used {
		return nil
	}
	if uint8(*m.meta.At(uintptr(i))>>versionShift) != id.Version() {
		return nil
	}
	return m.items.At(uintptr(i))
}

// Remove frees the slot named by id and returns a pointer to the dead
// record for one final look (cleanup of owned resources), or nil if the
// handle is stale. The pointer is semantically invalid on any
// subsequent call; do not store it.
func (m *Map[T]) Remove(id ID) *T {
	item := m.At(id)
	if item == nil {
		return nil
	}
	i := id.Index()
	next := id.Version() + 1 // wraps at 256 by design
	*m.meta.At(uintptr(i)) = uint32(next)<<versionShift | m.freeHead
	m.freeHead = i
	m.freeCount++
	m.checkInvariants()
	return item
}

// IDOf reconstructs the handle of a live record from a pointer into the
// pool. The caller must know the pointer still refers to a live slot;
// the result for foreign or stale pointers is meaningless.
func (m *Map[T]) IDOf(p *T) ID {
	i := m.items.Index(p)
	return MakeID(uint32(i), uint8(*m.meta.At(i)>>versionShift))
}

// Burn drains the free list without reclaiming slots: every slot below
// Used becomes addressable again as plain storage, so the pool can be
// treated as a contiguous array (e.g. for a bulk teardown). The link
// words of former free slots are cleared; their advertised versions are
// kept, so handles that were stale before Burn remain stale.
func (m *Map[T]) Burn() {
	for i := m.freeHead; i != MaxIndex; {
		w := m.meta.At(uintptr(i))
		next := *w & MaxIndex
		*w &^= MaxIndex
		i = next
	}
	m.freeHead = MaxIndex
	m.freeCount = 0
	m.checkInvariants()
}

// Count returns the number of live records.
func (m *Map[T]) Count() uint32 {
	return m.used - m.freeCount
}

// Used returns the pool's high-water mark: the number of slots ever
// drawn from the backing array, live or free.
func (m *Map[T]) Used() uint32 {
	return m.used
}

// Allocated returns the current slot capacity.
func (m *Map[T]) Allocated() uint32 {
	return m.allocated
}

// Free releases the backing arrays to the allocator. Free is idempotent
// and the pool may be reused afterwards, starting empty.
func (m *Map[T]) Free() {
	if m.allocated > 0 {
		m.alloc.FreeSlots(m.items.Slice(0, uintptr(m.allocated)))
		m.alloc.FreeMeta(m.meta.Slice(0, uintptr(m.allocated)))
	}
	m.items = uslice.Slice[T]{}
	m.meta = uslice.Slice[uint32]{}
	m.allocated = 0
	m.used = 0
	m.freeHead = MaxIndex
	m.freeCount = 0
}

// grow ensures capacity for at least needed slots, preserving live
// records in place. On failure the pool is untouched.
func (m *Map[T]) grow(needed uint32) bool {
	var t T
	// Each slot costs its record plus the meta word; the four header
	// words mirror the flat block's allocated/used/free-head/free-count
	// prefix for the purposes of the alignment computation.
	perItem := unsafe.Sizeof(t) + unsafe.Sizeof(uint32(0))
	newCap := slots.GrowCapacity(m.allocated, needed, perItem, 4*unsafe.Sizeof(uint32(0)), m.align, MaxIndex+1)
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
		fmt.Printf("slotmap: grow %d -> %d\n", m.allocated, newCap)
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

func (m *Map[T]) checkInvariants() {
	if slots.Invariants {
		if m.used > m.allocated {
			panic(fmt.Sprintf("invariant failed: used=%d > allocated=%d", m.used, m.allocated))
		}
		if m.freeCount > m.used {
			panic(fmt.Sprintf("invariant failed: freeCount=%d > used=%d", m.freeCount, m.used))
		}
		var n uint32
		for i := m.freeHead; i != MaxIndex; {
			if i >= m.used {
				panic(fmt.Sprintf("invariant failed: free chain visits unused slot %d", i))
			}
			n++
			if n > m.freeCount {
				panic("invariant failed: free chain longer than freeCount (cycle?)")
			}
			i = *m.meta.At(uintptr(i)) & MaxIndex
		}
		if n != m.freeCount {
			panic(fmt.Sprintf("invariant failed: free chain length %d != freeCount %d", n, m.freeCount))
		}
	}
}
