// Copyright 2024 The Ember Authors
// This file is part of Ember.
//
// Ember is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ember is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ember. If not, see <http://www.gnu.org/licenses/>.

package object

import "github.com/emberlang/ember/value"

// Array is the dense indexed storage with sparse-tail growth: length <=
// size <= capacity, holes represented as Invalid slots. Non-index
// properties (including "length" itself as seen by user code, and array
// builtins) live on the backing Object via the prototype.
type Array struct {
	Obj    *Object // carries the prototype link and any non-index properties
	slots  []value.Value
	length uint32 // logical length
	size   uint32 // high-water used slot count
}

// NewArray creates an array of the given initial length, every slot a hole.
func NewArray(proto *Object, length uint32) *Array {
	a := &Array{Obj: NewObject(proto), length: length, size: length}
	a.Obj.SetClass("Array")
	a.slots = make([]value.Value, length)
	for i := range a.slots {
		a.slots[i] = value.Hole()
	}
	return a
}

// Length returns the logical length.
func (a *Array) Length() uint32 { return a.length }

// Get returns the value at idx, or a hole if idx >= size. Never errors:
// out-of-range reads simply yield Invalid, which the property protocol
// then turns into "undefined" for GET.
func (a *Array) Get(idx uint32) value.Value {
	if idx >= a.size {
		return value.Hole()
	}
	return a.slots[idx]
}

// Set stores v at idx, growing (realloc'ing, geometrically) if idx >= size,
// and extending the logical length if idx >= length.
func (a *Array) Set(idx uint32, v value.Value) {
	if idx >= a.size {
		newSize := a.size
		if newSize == 0 {
			newSize = 4
		}
		for newSize <= idx {
			newSize *= 2
		}
		grown := make([]value.Value, newSize)
		copy(grown, a.slots)
		for i := a.size; i < newSize; i++ {
			grown[i] = value.Hole()
		}
		a.slots = grown
		a.size = newSize
	}
	a.slots[idx] = v
	if idx >= a.length {
		a.length = idx + 1
	}
}

// DeleteSlot marks idx as a hole rather than shrinking the array. It
// returns true even for an out-of-bounds index, matching DELETE's
// always-succeeds behavior on array receivers.
func (a *Array) DeleteSlot(idx uint32) bool {
	if idx < a.size {
		a.slots[idx] = value.Hole()
	}
	return true
}

// SetLength truncates or extends the logical length. Extending past size
// grows the backing slots to n (the new slots are holes); truncation holes
// the dropped slots but does not shrink the backing slice (no reclamation
// pass is specified).
func (a *Array) SetLength(n uint32) {
	if n < a.length {
		for i := n; i < a.length && i < a.size; i++ {
			a.slots[i] = value.Hole()
		}
	} else if n > a.size {
		a.Set(n-1, value.Hole())
		a.length = n
		return
	}
	a.length = n
}

// EachIndex visits indices in [0, length) that hold a non-hole value, in
// increasing order, skipping holes.
func (a *Array) EachIndex(fn func(idx uint32, v value.Value)) {
	for i := uint32(0); i < a.length && i < a.size; i++ {
		if a.slots[i].IsValid() {
			fn(i, a.slots[i])
		}
	}
}
