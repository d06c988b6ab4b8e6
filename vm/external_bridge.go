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

package vm

import (
	"github.com/emberlang/ember/external"
	"github.com/emberlang/ember/value"
)

// externalGet/Set/Find implement the External receiver's two-tier
// lookup: a hash-keyed embedded-descriptor sub-table first, falling
// back to the Descriptor's host callbacks — with "not found"/no-op —
// only when no embedded entry matches.
func (vm *VM) externalGet(receiver value.Value, name string) (value.Value, error) {
	d := receiver.Heap().(*external.Descriptor)
	if v, ok := d.Embedded(name); ok {
		return v, nil
	}
	if d.Get == nil {
		return value.Undef(), nil
	}
	v, ok, err := d.Get(d, name)
	if err != nil || !ok {
		return value.Undef(), err
	}
	return v, nil
}

func (vm *VM) externalSet(receiver value.Value, name string, v value.Value) error {
	d := receiver.Heap().(*external.Descriptor)
	if _, ok := d.Embedded(name); ok {
		d.Embed(name, v)
		return nil
	}
	if d.Set == nil {
		return nil
	}
	return d.Set(d, name, v)
}

func (vm *VM) externalFind(receiver value.Value, name string) bool {
	d := receiver.Heap().(*external.Descriptor)
	if _, ok := d.Embedded(name); ok {
		return true
	}
	if d.Find == nil {
		return false
	}
	return d.Find(d, name)
}
