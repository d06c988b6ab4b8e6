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

import (
	"github.com/cespare/xxhash/v2"
)

// PropKind distinguishes the four property-record kinds.
type PropKind uint8

const (
	KindProperty PropKind = iota
	KindMethod
	KindNativeGetter
	// KindWhiteout marks a name whose own binding has been deleted but whose
	// prototype binding must continue to be shadowed for "in" semantics.
	KindWhiteout
)

// Attributes are the three standard property flags.
type Attributes struct {
	Configurable bool
	Enumerable   bool
	Writable     bool
}

// entry is one slot of the leveled hash: a name, its precomputed hash, and
// the property record. An empty entry has used == false && deleted ==
// false. deleted marks a tombstone: probing must skip past it (the slot is
// free for a new insert) rather than treating it as a probe-chain
// terminator, or a later entry that collided past a deleted slot would
// become unreachable.
type entry struct {
	used    bool
	deleted bool
	hash    uint64
	name    string
	prop    Property
}

// hashName returns the 64-bit name-hash used to key the leveled hash, via
// xxhash.
func hashName(name string) uint64 {
	return xxhash.Sum64String(name)
}

// table is the leveled hash: an open-addressed array that doubles ("grows a
// level") when its load factor crosses loadFactorLimit. Growing rehashes
// every live entry into the new, larger level; nothing about a name's
// identity depends on which level it currently lives in.
type table struct {
	entries  []entry
	count    int // live entries
	occupied int // live entries + tombstones, the quantity that can exhaust probe slots
}

const loadFactorLimit = 0.7

func newTable(capHint int) *table {
	if capHint < 4 {
		capHint = 4
	}
	return &table{entries: make([]entry, nextPow2(capHint))}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// grow reallocates at double size and rehashes every live entry; tombstones are
// dropped, which is what bounds probe-chain length under repeated
// set/delete cycling on the same table.
func (t *table) grow() {
	old := t.entries
	newSize := len(old) * 2
	t.entries = make([]entry, newSize)
	t.count = 0
	t.occupied = 0
	for _, e := range old {
		if e.used && !e.deleted {
			t.insert(e.name, e.hash, e.prop)
		}
	}
}

// probe finds the slot for name: returns the index of an existing live
// entry, or the first free/tombstoned slot a new insert should reuse. A
// tombstone never terminates the probe chain the way a truly empty slot
// does, since a later entry may have collided past it.
func (t *table) probe(name string, h uint64) (int, bool) {
	mask := uint64(len(t.entries) - 1)
	i := h & mask
	firstFree := -1
	for {
		e := &t.entries[i]
		if !e.used {
			if firstFree < 0 {
				firstFree = int(i)
			}
			return firstFree, false
		}
		if e.deleted {
			if firstFree < 0 {
				firstFree = int(i)
			}
		} else if e.hash == h && e.name == name {
			return int(i), true
		}
		i = (i + 1) & mask
	}
}

// lookup returns the property record for name and whether it was found
// (including Whiteout records, which callers must check for explicitly).
func (t *table) lookup(name string) (Property, bool) {
	h := hashName(name)
	i, found := t.probe(name, h)
	if !found {
		return Property{}, false
	}
	return t.entries[i].prop, true
}

func (t *table) insert(name string, h uint64, p Property) {
	if float64(t.occupied+1) > loadFactorLimit*float64(len(t.entries)) {
		t.grow()
	}
	i, found := t.probe(name, h)
	if !found {
		t.count++
		if !t.entries[i].deleted {
			t.occupied++
		}
	}
	t.entries[i] = entry{used: true, hash: h, name: name, prop: p}
}

// set installs or overwrites a property record for name.
func (t *table) set(name string, p Property) {
	t.insert(name, hashName(name), p)
}

// delete removes name's own entry (used when the own table is not
// obligated to leave a Whiteout, i.e. the name has no shadowed prototype
// binding to protect). The slot is left as a tombstone rather than cleared
// outright, since clearing it would break the probe chain for any other
// entry that collided past this slot.
func (t *table) delete(name string) {
	h := hashName(name)
	i, found := t.probe(name, h)
	if !found {
		return
	}
	t.entries[i] = entry{used: true, deleted: true, hash: h, name: name}
	t.count--
}

// each calls fn for every live, non-whiteout entry in insertion-independent
// (bucket) order. Generic object enumeration order beyond array-index
// ordering is not guaranteed and not tested here.
func (t *table) each(fn func(name string, p Property)) {
	for _, e := range t.entries {
		if e.used && !e.deleted && e.prop.Kind != KindWhiteout {
			fn(e.name, e.prop)
		}
	}
}
