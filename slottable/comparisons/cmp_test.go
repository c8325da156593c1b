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

// Package comparisons benchmarks the slot table against other map
// shapes: concurrent hash maps (which pay for atomics we don't need),
// the one other insertion-ordered map in common use, and ordered trees
// (which pay log n for an ordering the slot table gets for free on
// insertion order).
package comparisons

import (
	"strconv"
	"testing"

	"github.com/alphadose/haxmap"
	"github.com/cornelk/hashmap"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/google/btree"
	"github.com/petar/GoLLRB/llrb"

	"github.com/slotpack/slots/slottable"
)

const benchmarkItemCount = 1024

type entry struct {
	Key string
	Val int64
}

func benchmarkKeys() []string {
	keys := make([]string, benchmarkItemCount)
	for i := range keys {
		keys[i] = "key-" + strconv.Itoa(i)
	}
	return keys
}

func setupSlotTable(b *testing.B) (*slottable.Table[entry], []string) {
	b.Helper()
	keys := benchmarkKeys()
	tbl := slottable.New[entry](benchmarkItemCount)
	for i, k := range keys {
		_, p, ok := tbl.Insert(slottable.StrHash(k), 0)
		if !ok {
			b.Fatal("insert failed")
		}
		*p = entry{Key: k, Val: int64(i)}
	}
	return tbl, keys
}

func BenchmarkGetSlotTable(b *testing.B) {
	tbl, keys := setupSlotTable(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%benchmarkItemCount]
		if _, p := tbl.Find(slottable.StrHash(k), func(e *entry) bool { return e.Key == k }); p == nil {
			b.Fatal("miss")
		}
	}
}

func BenchmarkGetHaxMap(b *testing.B) {
	m := haxmap.New[string, int64]()
	keys := benchmarkKeys()
	for i, k := range keys {
		m.Set(k, int64(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := m.Get(keys[i%benchmarkItemCount]); !ok {
			b.Fatal("miss")
		}
	}
}

func BenchmarkGetHashMap(b *testing.B) {
	m := hashmap.New[string, int64]()
	keys := benchmarkKeys()
	for i, k := range keys {
		m.Set(k, int64(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := m.Get(keys[i%benchmarkItemCount]); !ok {
			b.Fatal("miss")
		}
	}
}

func BenchmarkGetLinkedHashMap(b *testing.B) {
	m := linkedhashmap.New()
	keys := benchmarkKeys()
	for i, k := range keys {
		m.Put(k, int64(i))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := m.Get(keys[i%benchmarkItemCount]); !ok {
			b.Fatal("miss")
		}
	}
}

func BenchmarkGetBTree(b *testing.B) {
	tr := btree.NewG[entry](8, func(a, b entry) bool { return a.Key < b.Key })
	keys := benchmarkKeys()
	for i, k := range keys {
		tr.ReplaceOrInsert(entry{Key: k, Val: int64(i)})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, ok := tr.Get(entry{Key: keys[i%benchmarkItemCount]}); !ok {
			b.Fatal("miss")
		}
	}
}

type llrbEntry entry

func (e llrbEntry) Less(than llrb.Item) bool {
	return e.Key < than.(llrbEntry).Key
}

func BenchmarkGetLLRB(b *testing.B) {
	tr := llrb.New()
	keys := benchmarkKeys()
	for i, k := range keys {
		tr.InsertNoReplace(llrbEntry{Key: k, Val: int64(i)})
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if tr.Get(llrbEntry{Key: keys[i%benchmarkItemCount]}) == nil {
			b.Fatal("miss")
		}
	}
}

func BenchmarkPutSlotTable(b *testing.B) {
	keys := benchmarkKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tbl := slottable.New[entry](0)
		for j, k := range keys {
			_, p, _ := tbl.Insert(slottable.StrHash(k), 0)
			*p = entry{Key: k, Val: int64(j)}
		}
	}
}

func BenchmarkPutHaxMap(b *testing.B) {
	keys := benchmarkKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := haxmap.New[string, int64]()
		for j, k := range keys {
			m.Set(k, int64(j))
		}
	}
}

func BenchmarkPutHashMap(b *testing.B) {
	keys := benchmarkKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := hashmap.New[string, int64]()
		for j, k := range keys {
			m.Set(k, int64(j))
		}
	}
}

func BenchmarkPutLinkedHashMap(b *testing.B) {
	keys := benchmarkKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := linkedhashmap.New()
		for j, k := range keys {
			m.Put(k, int64(j))
		}
	}
}

func BenchmarkPutBTree(b *testing.B) {
	keys := benchmarkKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := btree.NewG[entry](8, func(a, b entry) bool { return a.Key < b.Key })
		for j, k := range keys {
			tr.ReplaceOrInsert(entry{Key: k, Val: int64(j)})
		}
	}
}

func BenchmarkPutLLRB(b *testing.B) {
	keys := benchmarkKeys()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr := llrb.New()
		for j, k := range keys {
			tr.InsertNoReplace(llrbEntry{Key: k, Val: int64(j)})
		}
	}
}

// Ordered iteration: the slot table's dense array against the linked
// hash map's list and the trees' in-order walks.

func BenchmarkIterSlotTable(b *testing.B) {
	tbl, _ := setupSlotTable(b)
	b.ResetTimer()
	var tmp int64
	for i := 0; i < b.N; i++ {
		tbl.Each(func(id slottable.ID, e *entry) bool {
			tmp += e.Val
			return true
		})
	}
	_ = tmp
}

func BenchmarkIterLinkedHashMap(b *testing.B) {
	m := linkedhashmap.New()
	for i, k := range benchmarkKeys() {
		m.Put(k, int64(i))
	}
	b.ResetTimer()
	var tmp int64
	for i := 0; i < b.N; i++ {
		m.Each(func(key any, value any) {
			tmp += value.(int64)
		})
	}
	_ = tmp
}

func BenchmarkIterBTree(b *testing.B) {
	tr := btree.NewG[entry](8, func(a, b entry) bool { return a.Key < b.Key })
	for i, k := range benchmarkKeys() {
		tr.ReplaceOrInsert(entry{Key: k, Val: int64(i)})
	}
	b.ResetTimer()
	var tmp int64
	for i := 0; i < b.N; i++ {
		tr.Ascend(func(e entry) bool {
			tmp += e.Val
			return true
		})
	}
	_ = tmp
}

func BenchmarkIterLLRB(b *testing.B) {
	tr := llrb.New()
	for i, k := range benchmarkKeys() {
		tr.InsertNoReplace(llrbEntry{Key: k, Val: int64(i)})
	}
	b.ResetTimer()
	var tmp int64
	for i := 0; i < b.N; i++ {
		tr.AscendGreaterOrEqual(tr.Min(), func(item llrb.Item) bool {
			tmp += item.(llrbEntry).Val
			return true
		})
	}
	_ = tmp
}
