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

// Package object implements the generic object, its property table and
// prototype chain, dense arrays, and the function/regexp heap records
// that participate in the same property protocol.
package object

import "github.com/emberlang/ember/value"

// Property is one record in an object's property table.
type Property struct {
	Name  string
	Value value.Value
	Kind  PropKind
	Attrs Attributes
}

// Object is the generic heap-allocated object: an own table, a
// pointer to a shared (prototype-resident, read-only until cloned) table,
// a prototype link, and a small flag set.
type Object struct {
	own        *table
	shared     *table // nil unless this object IS a prototype carrying built-ins
	proto      *Object
	extensible bool
	class      string // "Object", "Array", "Function", "RegExp", ... for typeof/toString
}

// NewObject creates an object with the given prototype (nil for the root).
func NewObject(proto *Object) *Object {
	return &Object{own: newTable(4), proto: proto, extensible: true, class: "Object"}
}

// NewPrototype creates an object meant to live in the prototype chain and
// hold a shared table of built-in methods, consulted by every instance
// that inherits from it before those methods are cloned down.
func NewPrototype(proto *Object) *Object {
	o := NewObject(proto)
	o.shared = newTable(8)
	return o
}

// Proto returns the prototype link.
func (o *Object) Proto() *Object { return o.proto }

// SetProto rebinds the prototype link. The prototype graph is a DAG built
// at VM init and never mutated during script execution; this setter exists
// for VM bootstrap wiring only.
func (o *Object) SetProto(p *Object) { o.proto = p }

// Class reports the internal [[Class]] string used by typeof/toString.
func (o *Object) Class() string { return o.class }

// SetClass overrides the internal class tag (used when specializing a
// generic Object into an Array/Function/RegExp instance shell).
func (o *Object) SetClass(c string) { o.class = c }

// Extensible reports whether new own properties may be added.
func (o *Object) Extensible() bool { return o.extensible }

// SetExtensible toggles extensibility. Setting a property on a
// non-extensible object is silent; Set checks this flag itself.
func (o *Object) SetExtensible(b bool) { o.extensible = b }

// DefineShared installs a built-in method or getter directly into the
// prototype's shared table. Only valid on an object created via
// NewPrototype.
func (o *Object) DefineShared(name string, p Property) {
	if o.shared == nil {
		o.shared = newTable(8)
	}
	o.shared.set(name, p)
}

// OwnLookupResult reports everything the property protocol needs about one
// object's own table for a given name.
type OwnLookupResult struct {
	Prop       Property
	Found      bool
	Whiteout   bool
	FromShared bool
}

// lookupOwn consults own_hash first, then shared_hash's copy-on-
// first-access rule: "for each node, consult own_hash first, then
// shared_hash. A Whiteout hit on own_hash stops the walk."
func (o *Object) lookupOwn(name string) OwnLookupResult {
	if p, ok := o.own.lookup(name); ok {
		if p.Kind == KindWhiteout {
			return OwnLookupResult{Whiteout: true}
		}
		return OwnLookupResult{Prop: p, Found: true}
	}
	if o.shared != nil {
		if p, ok := o.shared.lookup(name); ok {
			return OwnLookupResult{Prop: p, Found: true, FromShared: true}
		}
	}
	return OwnLookupResult{}
}

// Get walks the prototype chain for name: continue up the
// chain on miss for GET. When the hit comes from a prototype's shared_hash
// and the entry is a Method, the caller (the property-protocol layer in
// package vm) is responsible for cloning it down via CloneShared — Object
// itself only reports where the hit came from.
func (o *Object) Get(name string) (Property, *Object, bool) {
	for cur := o; cur != nil; cur = cur.proto {
		r := cur.lookupOwn(name)
		if r.Whiteout {
			return Property{}, nil, false
		}
		if r.Found {
			return r.Prop, cur, true
		}
	}
	return Property{}, nil, false
}

// In implements the "in" operator: like Get, but a shared-table hit never
// triggers a clone — IN only reports success, it never mutates o's own
// table.
func (o *Object) In(name string) bool {
	_, _, ok := o.Get(name)
	return ok
}

// CloneShared copies a Method entry found on a prototype's shared table
// into o's own table, the first-access half of copy-on-first-access.
// Returns the cloned property, now independently mutable per-instance.
func (o *Object) CloneShared(name string, p Property) Property {
	clone := p
	o.own.set(name, clone)
	return clone
}

// SetOwn creates or overwrites an own property on o directly (no
// prototype walk): this is what SET does once the property protocol has
// decided the receiver is o. It returns true even when the write is a
// silent no-op — a non-writable existing property, or a non-extensible
// object with no existing entry for name.
func (o *Object) SetOwn(name string, v value.Value, attrs Attributes) bool {
	if existing, ok := o.own.lookup(name); ok && existing.Kind != KindWhiteout {
		if !existing.Attrs.Writable {
			return true // silent no-op, not an error
		}
		existing.Value = v
		o.own.set(name, existing)
		return true
	}
	if !o.extensible {
		return true // silent edge case
	}
	o.own.set(name, Property{Name: name, Value: v, Kind: KindProperty, Attrs: attrs})
	return true
}

// DeleteOwn removes an own property outright: after delete, "in" walks the
// prototype chain and sees whatever the prototype would have yielded. A
// Whiteout tombstone (see CloneShared) is only needed to shadow a
// shared/prototype method after its per-instance clone is deleted, which
// plain removal here cannot express on its own.
func (o *Object) DeleteOwn(name string) bool {
	p, ok := o.own.lookup(name)
	if !ok {
		return true // deleting a non-existent property yields true
	}
	if p.Kind == KindWhiteout {
		return true
	}
	if !p.Attrs.Configurable {
		return false
	}
	o.own.delete(name)
	return true
}

// Whiteout installs a tombstone for name, shadowing a prototype binding
// so "in" reports absent even though the prototype still has it. Used by
// callers that need delete-then-reappear semantics distinct from plain
// removal (e.g. deleting a cloned copy of a shared method while the
// original must stay invisible on this instance).
func (o *Object) Whiteout(name string) {
	o.own.set(name, Property{Name: name, Kind: KindWhiteout})
}

// Each enumerates the object's own, enumerable, non-whiteout properties.
func (o *Object) Each(fn func(name string, p Property)) {
	o.own.each(func(name string, p Property) {
		if p.Attrs.Enumerable {
			fn(name, p)
		}
	})
}
