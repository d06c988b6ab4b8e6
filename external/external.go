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

// Package external implements the host-object callback bridge: a
// djb-hash-keyed dispatch table handing property access on an External
// value to host-supplied Go callbacks, rather than to the object
// package's property table. Host registration of concrete externals is
// out of scope for the core — this package only defines the narrow
// contract and the hashing primitive the generated dispatch uses.
package external

import "github.com/emberlang/ember/value"

// GetFn/SetFn/FindFn/EachFn/MethodFn are the host callback shapes a
// Descriptor wires up: the each_start/each pair is modeled as a single
// iterator callback here rather than two separate hooks.
type (
	GetFn    func(d *Descriptor, name string) (value.Value, bool, error)
	SetFn    func(d *Descriptor, name string, v value.Value) error
	FindFn   func(d *Descriptor, name string) bool
	EachFn   func(d *Descriptor, fn func(name string, v value.Value) bool) error
	MethodFn func(d *Descriptor, name string, args []value.Value) (value.Value, error)
)

// Descriptor is the heap record behind an External-tagged Value: a
// type-identity tag, an opaque host pointer, a sub-table of pre-registered
// values keyed by their name's hash, and the callback set implementing
// the property protocol for everything the sub-table doesn't cover.
type Descriptor struct {
	TypeBits uint32
	Data     interface{}
	CaseFold bool // djb-hash lowercases the name first when true

	// hash is the embedded-descriptor sub-table: property values the host
	// registered directly against this descriptor rather than behind a
	// callback, keyed by Hash(name). A hit here is returned/overwritten in
	// place without ever reaching Get/Set/Find.
	hash map[uint32]value.Value

	Get    GetFn
	Set    SetFn
	Find   FindFn
	Each   EachFn
	Method MethodFn
}

// Embed registers v as name's value directly on the descriptor's hash
// sub-table, so lookups for name resolve without calling Get/Set/Find at
// all. Hosts use this for fields that are plain data rather than
// something that needs a live callback into native state.
func (d *Descriptor) Embed(name string, v value.Value) {
	if d.hash == nil {
		d.hash = make(map[uint32]value.Value)
	}
	d.hash[d.Hash(name)] = v
}

// Embedded returns the sub-table value for name, if any was registered
// with Embed.
func (d *Descriptor) Embedded(name string) (value.Value, bool) {
	if d.hash == nil {
		return value.Value{}, false
	}
	v, ok := d.hash[d.Hash(name)]
	return v, ok
}

// Hash computes the djb2 hash of name, folding to lowercase first when
// the descriptor is case-insensitive.
func (d *Descriptor) Hash(name string) uint32 {
	if d.CaseFold {
		name = lower(name)
	}
	return DjbHash(name)
}

// DjbHash is Dan Bernstein's string hash, used directly for external-object
// name lookup: a plain djb-hash for case-sensitive keys and a lowercased
// djb-hash for case-insensitive ones.
func DjbHash(s string) uint32 {
	var h uint32 = 5381
	for i := 0; i < len(s); i++ {
		h = h*33 + uint32(s[i])
	}
	return h
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
