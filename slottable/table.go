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

// Package slottable implements an insertion-ordered open hash table in
// the manner of PHP 7's hashtable design: a power-of-two bucket array of
// entry ids feeding into a dense array of entries kept in insertion
// order, with collisions chained through the entries by id.
//
// Hashing is the caller's problem. Insert and Find take a 32-bit hash
// and lookups take an equality func that the caller closes over its
// key, so a Table can index any record shape by any notion of equality.
// Removal tombstones in place; storage is reclaimed by reuse on later
// insertions and by the compaction pass built into the next growth. The
// Ordered flag gives up the reuse for strict insertion order in the
// dense array; the FixedID flag gives up the compaction for permanently
// stable entry ids.
//
// A Table is NOT goroutine-safe.
package slottable

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/slotpack/slots"
	"github.com/slotpack/slots/internal/uslice"
)

const debug = false

// ID names an entry by its position in the dense array. Ids are stable
// across growth only when entries are inserted with FixedID.
type ID uint32

// NoneID is returned by operations that fail or miss.
const NoneID = ID(slots.None)

// noneHash marks a tombstoned entry. A user hash equal to this value is
// folded to noneHash-1 by FixHash at every insertion and lookup site.
const noneHash = slots.None

// Flags modify Insert behavior.
type Flags uint8

const (
	// Ordered preserves strict insertion order in the dense array:
	// tombstoned slots are never reused by later insertions and are
	// only compacted away on growth.
	Ordered Flags = 1 << iota

	// FixedID makes entry ids permanent: growth carries tombstones
	// across instead of compacting, so no surviving entry is ever
	// renumbered. Callers that cache ids need this.
	FixedID
)

const initialSize = 8

// Entry is a dense-array cell: the fixed hash, the id of the next entry
// in the same bucket chain (or, for a tombstone, in the free chain),
// and the caller's record.
type Entry[E any] struct {
	hash uint32
	next uint32
	data E
}

// Data returns the caller's record.
func (e *Entry[E]) Data() *E {
	return &e.data
}

// Table is an insertion-ordered hash table of E. The zero value is not
// usable; construct with New.
type Table[E any] struct {
	alloc     Allocator[E]
	buckets   uslice.Slice[uint32]
	entries   uslice.Slice[Entry[E]]
	allocated uint32
	used      uint32
	active    uint32
	freeHead  uint32
}

// New constructs a Table with the specified initial capacity, rounded
// up to a power of two of at least 8. If initialCapacity is 0 the table
// allocates on the first Insert.
func New[E any](initialCapacity int, options ...option[E]) *Table[E] {
	t := &Table[E]{
		alloc:    defaultAllocator[E]{},
		freeHead: slots.None,
	}
	for _, op := range options {
		op.apply(t)
	}
	if initialCapacity > 0 {
		target := uint32(initialSize)
		for target < uint32(initialCapacity) {
			target *= 2
		}
		t.resize(target, 0)
	}
	t.checkInvariants()
	return t
}

// FixHash folds the reserved tombstone value out of the user hash
// space. It is applied symmetrically by Insert, Find, and Remove;
// callers only need it when poking at entry hashes directly.
func FixHash(h uint32) uint32 {
	if h == noneHash {
		return noneHash - 1
	}
	return h
}

// StrHash is a convenience 32-bit string hash compatible with the
// classic shift-and-subtract construction.
func StrHash(s string) uint32 {
	if len(s) == 0 {
		return 0
	}
	h := uint32(s[0])
	for i := 1; i < len(s); i++ {
		h = (h << 5) - h + uint32(s[i])
	}
	return h
}

// Insert appends an entry under the given user hash and returns its id
// and a pointer to the (possibly stale; overwrite it) record. Unless
// flags contains Ordered, a tombstoned slot is reused in preference to
// appending. Growth doubles the table, rebuilds the bucket array, and
// compacts tombstones away unless flags contains FixedID. On
// allocation failure Insert returns (NoneID, nil, false) and the table
// is unchanged.
func (t *Table[E]) Insert(userHash uint32, flags Flags) (ID, *E, bool) {
	var id uint32
	var e *Entry[E]
	if flags&Ordered == 0 && t.freeHead != slots.None {
		id = t.freeHead
		e = t.entries.At(uintptr(id))
		t.freeHead = e.next
		if debug {
			fmt.Printf("slottable: insert reusing tombstone %d\n", id)
		}
	} else {
		if t.used == t.allocated && !t.grow(flags) {
			return NoneID, nil, false
		}
		id = t.used
		t.used++
		e = t.entries.At(uintptr(id))
	}
	t.active++
	e.hash = FixHash(userHash)
	idx := uintptr(e.hash & (t.allocated - 1))
	e.next = *t.buckets.At(idx)
	*t.buckets.At(idx) = id
	t.checkInvariants()
	return ID(id), &e.data, true
}

// Find walks the bucket chain for the given user hash, calling eq on
// each entry whose fixed hash matches, and returns the first entry eq
// accepts, or (NoneID, nil) on a miss.
func (t *Table[E]) Find(userHash uint32, eq func(*E) bool) (ID, *E) {
	if t.allocated == 0 {
		return NoneID, nil
	}
	h := FixHash(userHash)
	id := *t.buckets.At(uintptr(h & (t.allocated - 1)))
	for id != slots.None {
		e := t.entries.At(uintptr(id))
		if e.hash == h && eq(&e.data) {
			return ID(id), &e.data
		}
		id = e.next
	}
	return NoneID, nil
}

// Remove tombstones the first entry matching the given user hash and
// equality func: the entry is unlinked from its bucket chain, its hash
// is set to the tombstone marker, and its slot joins the free chain.
// The dense array is not shifted; storage is reclaimed at the next
// compacting growth. Remove returns a pointer to the dead record for
// one final look, or nil on a miss. The pointer is semantically invalid
// on any subsequent call.
func (t *Table[E]) Remove(userHash uint32, eq func(*E) bool) *E {
	if t.allocated == 0 {
		return nil
	}
	h := FixHash(userHash)
	idx := uintptr(h & (t.allocated - 1))
	prev := slots.None
	id := *t.buckets.At(idx)
	for id != slots.None {
		e := t.entries.At(uintptr(id))
		if e.hash == h && eq(&e.data) {
			if prev == slots.None {
				*t.buckets.At(idx) = e.next
			} else {
				t.entries.At(uintptr(prev)).next = e.next
			}
			e.hash = noneHash
			e.next = t.freeHead
			t.freeHead = id
			t.active--
			t.checkInvariants()
			return &e.data
		}
		prev = id
		id = e.next
	}
	return nil
}

// At returns the record at a dense-array id (not a hash; use Find for
// that), or nil if the id is out of range or tombstoned.
func (t *Table[E]) At(id ID) *E {
	if uint32(id) >= t.used {
		return nil
	}
	e := t.entries.At(uintptr(id))
	if e.hash == noneHash {
		return nil
	}
	return &e.data
}

// Each calls yield for every live entry in dense-array order, which is
// insertion order for entries inserted with Ordered. If yield returns
// false, iteration stops. The table must not be mutated during
// iteration.
func (t *Table[E]) Each(yield func(id ID, e *E) bool) {
	for i := uint32(0); i < t.used; i++ {
		e := t.entries.At(uintptr(i))
		if e.hash == noneHash {
			continue
		}
		if !yield(ID(i), &e.data) {
			return
		}
	}
}

// Used returns the number of dense-array slots drawn, live or
// tombstoned.
func (t *Table[E]) Used() uint32 {
	return t.used
}

// Count returns the number of live entries.
func (t *Table[E]) Count() uint32 {
	return t.active
}

// Allocated returns the table capacity.
func (t *Table[E]) Allocated() uint32 {
	return t.allocated
}

// MemUsage returns the byte footprint of the table's backing arrays
// plus header, mirroring the flat single-block layout.
func (t *Table[E]) MemUsage() uintptr {
	var e Entry[E]
	header := 4 * unsafe.Sizeof(uint32(0))
	return header + uintptr(t.allocated)*(unsafe.Sizeof(uint32(0))+unsafe.Sizeof(e))
}

// Free releases the backing arrays to the allocator. Free is idempotent
// and the table may be reused afterwards, starting empty.
func (t *Table[E]) Free() {
	if t.allocated > 0 {
		t.alloc.FreeBuckets(t.buckets.Slice(0, uintptr(t.allocated)))
		t.alloc.FreeEntries(t.entries.Slice(0, uintptr(t.allocated)))
	}
	t.buckets = uslice.Slice[uint32]{}
	t.entries = uslice.Slice[Entry[E]]{}
	t.allocated = 0
	t.used = 0
	t.active = 0
	t.freeHead = slots.None
}

// grow doubles the table (or creates the initial block) and migrates
// the dense array into it. On failure the table is untouched.
func (t *Table[E]) grow(flags Flags) bool {
	newAllocated := uint32(initialSize)
	if t.allocated > 0 {
		if t.allocated >= 1<<31 {
			return false
		}
		newAllocated = t.allocated * 2
	}
	return t.resize(newAllocated, flags)
}

// resize rebuilds the table at newAllocated capacity, walking the old
// dense array: live entries are copied and relinked into the new bucket
// array; tombstones are compacted away unless FixedID, which instead
// carries them (and the free chain through them) across unchanged.
func (t *Table[E]) resize(newAllocated uint32, flags Flags) bool {
	newBuckets := t.alloc.AllocBuckets(int(newAllocated))
	if newBuckets == nil {
		return false
	}
	newEntries := t.alloc.AllocEntries(int(newAllocated))
	if newEntries == nil {
		t.alloc.FreeBuckets(newBuckets)
		return false
	}
	for i := range newBuckets {
		newBuckets[i] = slots.None
	}
	nb := uslice.Make(newBuckets)
	ne := uslice.Make(newEntries)

	if debug {
		fmt.Printf("slottable: resize %d -> %d (used=%d active=%d)\n",
			t.allocated, newAllocated, t.used, t.active)
	}

	mask := newAllocated - 1
	var newid, newactive uint32
	for i := uint32(0); i < t.used; i++ {
		e := t.entries.At(uintptr(i))
		if e.hash != noneHash {
			dst := ne.At(uintptr(newid))
			*dst = *e
			idx := uintptr(e.hash & mask)
			dst.next = *nb.At(idx)
			*nb.At(idx) = newid
			newactive++
			newid++
		} else if flags&FixedID != 0 {
			// Nothing before this tombstone was skipped either, so its
			// id and free-chain links remain valid as-is.
			*ne.At(uintptr(newid)) = *e
			newid++
		}
	}

	freeHead := slots.None
	if flags&FixedID != 0 {
		freeHead = t.freeHead
	}
	if t.allocated > 0 {
		t.alloc.FreeBuckets(t.buckets.Slice(0, uintptr(t.allocated)))
		t.alloc.FreeEntries(t.entries.Slice(0, uintptr(t.allocated)))
	}
	t.buckets = nb
	t.entries = ne
	t.allocated = newAllocated
	t.used = newid
	t.active = newactive
	t.freeHead = freeHead
	t.checkInvariants()
	return true
}

func (t *Table[E]) checkInvariants() {
	if slots.Invariants {
		if t.allocated != 0 && t.allocated&(t.allocated-1) != 0 {
			panic(fmt.Sprintf("invariant failed: allocated=%d not a power of two", t.allocated))
		}
		if t.used > t.allocated || t.active > t.used {
			panic(fmt.Sprintf("invariant failed: allocated=%d used=%d active=%d\n%s",
				t.allocated, t.used, t.active, t.debugString()))
		}

		// Every live entry is reachable from exactly one bucket chain,
		// in the bucket its hash selects; tombstones from none.
		seen := make(map[uint32]bool)
		var reachable uint32
		for b := uint32(0); b < t.allocated; b++ {
			for id := *t.buckets.At(uintptr(b)); id != slots.None; {
				if id >= t.used {
					panic(fmt.Sprintf("invariant failed: bucket %d chains to unused id %d\n%s", b, id, t.debugString()))
				}
				if seen[id] {
					panic(fmt.Sprintf("invariant failed: entry %d reachable twice\n%s", id, t.debugString()))
				}
				seen[id] = true
				e := t.entries.At(uintptr(id))
				if e.hash == noneHash {
					panic(fmt.Sprintf("invariant failed: tombstone %d in bucket chain %d\n%s", id, b, t.debugString()))
				}
				if e.hash&(t.allocated-1) != b {
					panic(fmt.Sprintf("invariant failed: entry %d hash %08x in wrong bucket %d\n%s", id, e.hash, b, t.debugString()))
				}
				reachable++
				id = e.next
			}
		}
		if reachable != t.active {
			panic(fmt.Sprintf("invariant failed: %d reachable, active=%d\n%s", reachable, t.active, t.debugString()))
		}

		// The free chain covers every tombstone exactly once.
		var tombs uint32
		for id := t.freeHead; id != slots.None; {
			if id >= t.used || seen[id] {
				panic(fmt.Sprintf("invariant failed: free chain visits %d\n%s", id, t.debugString()))
			}
			seen[id] = true
			e := t.entries.At(uintptr(id))
			if e.hash != noneHash {
				panic(fmt.Sprintf("invariant failed: live entry %d on free chain\n%s", id, t.debugString()))
			}
			tombs++
			if tombs > t.used {
				panic("invariant failed: free chain cycle")
			}
			id = e.next
		}
		if tombs != t.used-t.active {
			panic(fmt.Sprintf("invariant failed: %d tombstones on free chain, used-active=%d\n%s",
				tombs, t.used-t.active, t.debugString()))
		}
	}
}

func (t *Table[E]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "allocated=%d  used=%d  active=%d  free-head=%d\n",
		t.allocated, t.used, t.active, t.freeHead)
	for i := uint32(0); i < t.used; i++ {
		e := t.entries.At(uintptr(i))
		if e.hash == noneHash {
			fmt.Fprintf(&buf, "  %4d: tombstone next=%d\n", i, e.next)
		} else {
			fmt.Fprintf(&buf, "  %4d: hash=%08x next=%d %v\n", i, e.hash, e.next, e.data)
		}
	}
	return buf.String()
}
