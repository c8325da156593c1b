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

// Package slots holds the base configuration shared by the slotlist,
// slotmap, and slottable containers: the growth schedule, byte alignment
// of the backing block, and the none sentinel for 32-bit id spaces.
//
// The containers themselves live in subpackages. Each one presents a
// densely packed, relocatable backing array addressed by small integer
// handles rather than pointers: growing a container may move its records,
// but handles remain valid. slotlist and slotmap grow by the Flex
// schedule and align their blocks as defined here; slottable uses only
// the None sentinel and grows by strict doubling from 8.
package slots

// None is the sentinel handle value for all 32-bit id spaces. No valid
// id ever equals None.
const None = ^uint32(0)

// DefaultAlign is the default byte alignment for a container's backing
// block. Capacity computations round the block size up to a multiple of
// this and convert the surplus back into extra record capacity.
const DefaultAlign = 16

// Flex returns the next capacity step for a container currently sized n:
// 10, 100, 1000, 10000, and doubling from there. Small containers jump
// in decades so that the first few grows are cheap to reason about;
// large ones double like an ordinary dynamic array.
func Flex(n uint32) uint32 {
	switch {
	case n < 10:
		return 10
	case n < 100:
		return 100
	case n < 1000:
		return 1000
	case n < 10000:
		return 10000
	default:
		return n * 2
	}
}

// Align rounds n up to the next multiple of a. a must be a power of two.
func Align(n, a uintptr) uintptr {
	return (n + (a - 1)) &^ (a - 1)
}

// GrowCapacity computes the item capacity for the next growth of a
// flex-scheduled container. It steps Flex from the current capacity
// until the needed item count is covered, converts to bytes (itemBytes
// per item plus metaBytes of header), aligns the block size up to align
// bytes, and converts back to items so that surplus bytes become extra
// capacity. It returns 0 if the resulting capacity would reach maxItems,
// which callers treat as an allocation failure.
func GrowCapacity(current, needed uint32, itemBytes, metaBytes, align uintptr, maxItems uint32) uint32 {
	if itemBytes == 0 {
		itemBytes = 1
	}
	n := current
	for n < needed {
		n = Flex(n)
	}
	bytes := Align(uintptr(n)*itemBytes+metaBytes, align)
	n64 := uint64((bytes - metaBytes) / itemBytes)
	if n64 >= uint64(maxItems) {
		return 0
	}
	return uint32(n64)
}
