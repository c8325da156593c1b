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
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type record struct {
	Tag   uint64
	Extra [3]uint32
}

func TestIDPacking(t *testing.T) {
	testCases := []struct {
		index   uint32
		version uint8
	}{
		{0, 0},
		{1, 0},
		{0, 1},
		{0xFFFFFE, 0xFF},
		{12345, 7},
	}
	for _, c := range testCases {
		id := MakeID(c.index, c.version)
		require.Equal(t, c.index, id.Index())
		require.Equal(t, c.version, id.Version())
	}
	require.EqualValues(t, 0xFFFFFF, NoneID.Index())
	require.EqualValues(t, 0xFF, NoneID.Version())
}

func TestAddRemoveReuse(t *testing.T) {
	m := New[record](0)

	h := make([]ID, 3)
	for i := range h {
		id, r, ok := m.Add()
		require.True(t, ok)
		require.NotNil(t, r)
		require.EqualValues(t, i, id.Index())
		require.EqualValues(t, 0, id.Version())
		r.Tag = uint64(100 + i)
		h[i] = id
	}
	require.EqualValues(t, 3, m.Count())
	require.EqualValues(t, 3, m.Used())
	require.EqualValues(t, 0, m.used-m.Count())

	// Remove the middle record: its handle goes stale immediately.
	last := m.Remove(h[1])
	require.NotNil(t, last)
	require.EqualValues(t, 101, last.Tag)
	require.Nil(t, m.At(h[1]))
	require.Nil(t, m.Remove(h[1]))
	require.EqualValues(t, 2, m.Count())
	require.EqualValues(t, 3, m.Used())

	// The next Add reuses slot 1 at version 1.
	id, r, ok := m.Add()
	require.True(t, ok)
	require.EqualValues(t, 1, id.Index())
	require.EqualValues(t, 1, id.Version())
	require.EqualValues(t, record{}, *r)
	require.Nil(t, m.At(h[1]))
	require.Same(t, r, m.At(id))
	require.EqualValues(t, 3, m.Count())
	require.EqualValues(t, 3, m.Used())
}

func TestCopy(t *testing.T) {
	m := New[record](0)
	src := record{Tag: 42, Extra: [3]uint32{1, 2, 3}}
	id, r, ok := m.Copy(src)
	require.True(t, ok)
	require.Empty(t, cmp.Diff(src, *r))
	require.Empty(t, cmp.Diff(src, *m.At(id)))

	// Copy into a reused slot overwrites the dead tenant entirely.
	m.Remove(id)
	id2, r2, ok := m.Copy(record{Tag: 7})
	require.True(t, ok)
	require.EqualValues(t, id.Index(), id2.Index())
	require.Empty(t, cmp.Diff(record{Tag: 7}, *r2))
}

func TestGrowthPreservesHandles(t *testing.T) {
	m := New[record](0)
	h := make([]ID, 2000)
	for i := range h {
		id, r, ok := m.Add()
		require.True(t, ok)
		r.Tag = uint64(i)
		h[i] = id
	}
	want := *m.At(h[500])

	// Force several growths.
	for i := 0; i < 10000; i++ {
		_, r, ok := m.Add()
		require.True(t, ok)
		r.Tag = uint64(2000 + i)
	}
	require.Empty(t, cmp.Diff(want, *m.At(h[500])))
	for i := range h {
		require.EqualValues(t, uint64(i), m.At(h[i]).Tag)
	}
}

func TestVersionMonotone(t *testing.T) {
	m := New[uint64](0)
	id, _, ok := m.Add()
	require.True(t, ok)
	require.EqualValues(t, 0, id.Index())

	// Churn one slot through many generations: each reissue bumps the
	// version by one, modulo the 8-bit width.
	for gen := 1; gen <= 600; gen++ {
		require.NotNil(t, m.Remove(id))
		next, _, ok := m.Add()
		require.True(t, ok)
		require.EqualValues(t, 0, next.Index())
		require.EqualValues(t, uint8(gen), next.Version())
		// The immediately prior handle is always one generation behind
		// and must miss, on both sides of the 8-bit wrap.
		require.Nil(t, m.At(id), "stale handle resolved at gen %d", gen)
		id = next
	}
}

func TestAccounting(t *testing.T) {
	m := New[uint64](0)
	var ids []ID
	for i := 0; i < 100; i++ {
		id, r, ok := m.Add()
		require.True(t, ok)
		*r = uint64(i)
		ids = append(ids, id)
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	for i, id := range ids[:40] {
		require.NotNil(t, m.Remove(id))
		require.EqualValues(t, 100, m.Used())
		require.EqualValues(t, i+1, m.freeCount)
		require.EqualValues(t, 100-(i+1), m.Count())
	}

	// Free list pops in LIFO order.
	for i := 39; i >= 0; i-- {
		id, _, ok := m.Add()
		require.True(t, ok)
		require.EqualValues(t, ids[i].Index(), id.Index())
		require.EqualValues(t, ids[i].Version()+1, id.Version())
	}
	require.EqualValues(t, 100, m.Count())
	require.EqualValues(t, 100, m.Used())
}

func TestIDOf(t *testing.T) {
	m := New[record](0)
	var ids []ID
	for i := 0; i < 50; i++ {
		id, r, ok := m.Add()
		require.True(t, ok)
		r.Tag = uint64(i)
		ids = append(ids, id)
	}
	m.Remove(ids[20])
	reissued, _, _ := m.Add()

	for i, id := range ids {
		if i == 20 {
			continue
		}
		require.Equal(t, id, m.IDOf(m.At(id)))
	}
	require.Equal(t, reissued, m.IDOf(m.At(reissued)))
}

func TestBurn(t *testing.T) {
	m := New[uint64](0)
	var ids []ID
	for i := 0; i < 10; i++ {
		id, r, ok := m.Add()
		require.True(t, ok)
		*r = uint64(i)
		ids = append(ids, id)
	}
	m.Remove(ids[2])
	m.Remove(ids[5])
	m.Remove(ids[8])
	require.EqualValues(t, 7, m.Count())

	m.Burn()
	require.EqualValues(t, 10, m.Count())
	require.EqualValues(t, 10, m.Used())

	// Stale handles stay stale after the burn.
	require.Nil(t, m.At(ids[2]))
	require.Nil(t, m.At(ids[5]))
	// Live handles are untouched.
	require.EqualValues(t, 3, *m.At(ids[3]))

	// A fresh Add appends rather than reusing.
	id, _, ok := m.Add()
	require.True(t, ok)
	require.EqualValues(t, 10, id.Index())
}

func TestRandomOracle(t *testing.T) {
	m := New[uint64](0)
	live := make(map[ID]uint64)
	dead := make([]ID, 0, 1024)
	churn := make(map[uint32]int) // removals per slot index
	var liveIDs []ID

	refresh := func() {
		liveIDs = liveIDs[:0]
		for id := range live {
			liveIDs = append(liveIDs, id)
		}
	}

	for i := 0; i < 20000; i++ {
		switch r := rand.Float64(); {
		case r < 0.5: // 50% adds
			v := rand.Uint64()
			id, rec, ok := m.Add()
			require.True(t, ok)
			*rec = v
			live[id] = v
			liveIDs = append(liveIDs, id)
		case r < 0.7: // 20% removes
			if len(liveIDs) == 0 {
				break
			}
			j := rand.Intn(len(liveIDs))
			id := liveIDs[j]
			if _, ok := live[id]; !ok {
				break
			}
			require.NotNil(t, m.Remove(id))
			delete(live, id)
			dead = append(dead, id)
			churn[id.Index()]++
			refresh()
		case r < 0.9: // 20% live lookups
			if len(liveIDs) > 0 {
				id := liveIDs[rand.Intn(len(liveIDs))]
				if v, ok := live[id]; ok {
					p := m.At(id)
					require.NotNil(t, p)
					require.EqualValues(t, v, *p)
				}
			}
		default: // 10% stale lookups
			if len(dead) > 0 {
				id := dead[rand.Intn(len(dead))]
				// An 8-bit version can only collide once a slot has
				// churned through 256 generations; below that a stale
				// handle must miss.
				if _, relive := live[id]; !relive && churn[id.Index()] < 256 {
					require.Nil(t, m.At(id))
				}
			}
		}
		require.EqualValues(t, len(live), m.Count())
	}

	for id, v := range live {
		require.EqualValues(t, v, *m.At(id))
	}
}

type countingAllocator[T any] struct {
	alloc int
	free  int
	fail  bool
}

func (a *countingAllocator[T]) AllocSlots(n int) []T {
	if a.fail {
		return nil
	}
	a.alloc++
	return make([]T, n)
}

func (a *countingAllocator[T]) AllocMeta(n int) []uint32 {
	if a.fail {
		return nil
	}
	a.alloc++
	return make([]uint32, n)
}

func (a *countingAllocator[T]) FreeSlots(v []T)     { a.free++ }
func (a *countingAllocator[T]) FreeMeta(v []uint32) { a.free++ }

func TestAllocator(t *testing.T) {
	a := &countingAllocator[uint64]{}
	m := New[uint64](0, WithAllocator[uint64](a))
	for i := 0; i < 200; i++ {
		_, r, ok := m.Add()
		require.True(t, ok)
		*r = uint64(i)
	}
	// Three growths (flex 10 -> 100 -> 1000 region), two arrays each.
	require.EqualValues(t, 6, a.alloc)
	require.EqualValues(t, 4, a.free)

	m.Free()
	require.EqualValues(t, 6, a.free)
	m.Free()
	require.EqualValues(t, 6, a.free)
}

func TestAllocFailure(t *testing.T) {
	a := &countingAllocator[uint64]{}
	m := New[uint64](0, WithAllocator[uint64](a))
	var ids []ID
	for m.Used() < m.Allocated() || m.Allocated() == 0 {
		id, r, ok := m.Add()
		require.True(t, ok)
		*r = uint64(len(ids))
		ids = append(ids, id)
	}

	a.fail = true
	id, r, ok := m.Add()
	require.False(t, ok)
	require.Equal(t, NoneID, id)
	require.Nil(t, r)
	require.EqualValues(t, len(ids), m.Count())
	for i, h := range ids {
		require.EqualValues(t, uint64(i), *m.At(h))
	}

	// Reuse still works while the allocator is failing: no growth
	// needed.
	require.NotNil(t, m.Remove(ids[0]))
	_, _, ok = m.Add()
	require.True(t, ok)

	a.fail = false
	_, _, ok = m.Add()
	require.True(t, ok)
}
