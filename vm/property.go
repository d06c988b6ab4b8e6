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
	"fmt"
	"strconv"

	"github.com/emberlang/ember/object"
	"github.com/emberlang/ember/value"
)

// getProp implements GET across every receiver kind: primitives
// read from their boxed prototype, arrays special-case numeric indices and
// "length", objects/functions/regexps walk the prototype chain with
// copy-on-first-access cloning of shared Method entries, and externals
// defer to their host callback.
func (vm *VM) getProp(receiver, key value.Value) (value.Value, error) {
	name := vm.propName(key)

	switch receiver.Tag() {
	case value.Null, value.Undefined:
		return value.Undef(), fmt.Errorf("%w: cannot read property %q of %s", ErrType, name, receiver.Tag())

	case value.StringTag:
		if name == "length" {
			return value.Num(float64(vm.stringLength(receiver))), nil
		}
		if idx, ok := asArrayIndex(name); ok {
			b := receiver.Bytes()
			if r, size := decodeAt(b, idx); size > 0 {
				return value.ShortString([]byte(string(r)), 1), nil
			}
			return value.Undef(), nil
		}
		return vm.getFromObjectChain(vm.StringProto, name)

	case value.Array:
		arr := receiver.Heap().(*object.Array)
		if name == "length" {
			return value.Num(float64(arr.Length())), nil
		}
		if idx, ok := asArrayIndex(name); ok {
			v := arr.Get(idx)
			if !v.IsValid() {
				return value.Undef(), nil
			}
			return v, nil
		}
		return vm.getFromObject(arr.Obj, name)

	case value.Object:
		return vm.getFromObject(receiver.Heap().(*object.Object), name)

	case value.Function, value.NativeFunction:
		fn := receiver.Heap().(*object.Function)
		return vm.getFromObject(fn.Obj, name)

	case value.RegExp:
		r := receiver.Heap().(*object.RegExpRecord)
		switch name {
		case "source":
			return value.String([]byte(r.Source), len(r.Source)), nil
		case "flags":
			return value.String([]byte(r.Flags), len(r.Flags)), nil
		}
		return vm.getFromObject(r.Obj, name)

	case value.External:
		return vm.externalGet(receiver, name)

	case value.Boolean:
		return vm.getFromObjectChain(vm.ObjectProto, name)

	case value.Number:
		return vm.getFromObjectChain(vm.ObjectProto, name)

	default:
		return value.Undef(), nil
	}
}

// getFromObject walks o's prototype chain, cloning a shared Method entry
// down to o itself the first time it's hit: the receiving object's own
// table gets a private copy, so subsequent lookups find the own copy and
// never re-walk the prototype chain for that name again.
func (vm *VM) getFromObject(o *object.Object, name string) (value.Value, error) {
	p, owner, found := o.Get(name)
	if !found {
		return value.Undef(), nil
	}
	if owner != o && p.Kind == object.KindMethod {
		o.CloneShared(name, p)
	}
	return p.Value, nil
}

// getFromObjectChain is getFromObject for receivers that box onto a
// prototype directly (primitives with no own object instance).
func (vm *VM) getFromObjectChain(proto *object.Object, name string) (value.Value, error) {
	if proto == nil {
		return value.Undef(), nil
	}
	return vm.getFromObject(proto, name)
}

// setProp implements SET: arrays extend storage, objects
// create or overwrite an own entry (never walking up to write a
// prototype's slot), externals defer to the host callback, and setting on
// a primitive (not boxed) is a silent no-op.
func (vm *VM) setProp(receiver, key, v value.Value) error {
	name := vm.propName(key)

	switch receiver.Tag() {
	case value.Array:
		arr := receiver.Heap().(*object.Array)
		if name == "length" {
			if n, ok := asUint32(v); ok {
				arr.SetLength(n)
			}
			return nil
		}
		if idx, ok := asArrayIndex(name); ok {
			arr.Set(idx, v)
			return nil
		}
		arr.Obj.SetOwn(name, v, object.Attributes{Configurable: true, Enumerable: true, Writable: true})
		return nil

	case value.Object:
		o := receiver.Heap().(*object.Object)
		o.SetOwn(name, v, object.Attributes{Configurable: true, Enumerable: true, Writable: true})
		return nil

	case value.Function, value.NativeFunction:
		fn := receiver.Heap().(*object.Function)
		fn.Obj.SetOwn(name, v, object.Attributes{Configurable: true, Enumerable: true, Writable: true})
		return nil

	case value.RegExp:
		r := receiver.Heap().(*object.RegExpRecord)
		r.Obj.SetOwn(name, v, object.Attributes{Configurable: true, Enumerable: true, Writable: true})
		return nil

	case value.External:
		return vm.externalSet(receiver, name, v)

	default:
		return nil // silent: primitives do not accept own properties
	}
}

// inProp implements the `in` operator: like getProp, but a shared-table
// hit never triggers a clone.
func (vm *VM) inProp(receiver, key value.Value) bool {
	name := vm.propName(key)
	switch receiver.Tag() {
	case value.Array:
		arr := receiver.Heap().(*object.Array)
		if name == "length" {
			return true
		}
		if idx, ok := asArrayIndex(name); ok {
			return arr.Get(idx).IsValid()
		}
		return arr.Obj.In(name)
	case value.Object:
		return receiver.Heap().(*object.Object).In(name)
	case value.Function, value.NativeFunction:
		return receiver.Heap().(*object.Function).Obj.In(name)
	case value.RegExp:
		return receiver.Heap().(*object.RegExpRecord).Obj.In(name)
	case value.External:
		return vm.externalFind(receiver, name)
	default:
		return false
	}
}

// deleteProp implements DELETE: array index keys always report true
// (holing the slot when it is in range), other keys and objects defer to
// DeleteOwn (configurable check). Externals and primitives report true
// without calling the host or changing anything.
func (vm *VM) deleteProp(receiver, key value.Value) bool {
	name := vm.propName(key)
	switch receiver.Tag() {
	case value.Array:
		arr := receiver.Heap().(*object.Array)
		if idx, ok := asArrayIndex(name); ok {
			return arr.DeleteSlot(idx)
		}
		return arr.Obj.DeleteOwn(name)
	case value.Object:
		return receiver.Heap().(*object.Object).DeleteOwn(name)
	case value.Function, value.NativeFunction:
		return receiver.Heap().(*object.Function).Obj.DeleteOwn(name)
	case value.RegExp:
		return receiver.Heap().(*object.RegExpRecord).Obj.DeleteOwn(name)
	default:
		return true
	}
}

// enumerate returns the names ENUM_START/ENUM_NEXT walk: array
// indices in increasing order followed by own enumerable object keys, or
// just the latter for a plain object.
func (vm *VM) enumerate(receiver value.Value) []string {
	var names []string
	switch receiver.Tag() {
	case value.Array:
		arr := receiver.Heap().(*object.Array)
		arr.EachIndex(func(idx uint32, _ value.Value) {
			names = append(names, strconv.FormatUint(uint64(idx), 10))
		})
		arr.Obj.Each(func(name string, _ object.Property) { names = append(names, name) })
	case value.Object:
		receiver.Heap().(*object.Object).Each(func(name string, _ object.Property) { names = append(names, name) })
	case value.Function, value.NativeFunction:
		receiver.Heap().(*object.Function).Obj.Each(func(name string, _ object.Property) { names = append(names, name) })
	}
	return names
}

// propName converts a key Value to its string form. Property keys are
// always strings in this core (no symbol type); any other key, numbers
// included, is converted with toStringFast, and the array paths parse the
// result back with asArrayIndex.
func (vm *VM) propName(key value.Value) string {
	if key.Tag() == value.StringTag {
		return string(key.Bytes())
	}
	return vm.toStringFast(key)
}

func asArrayIndex(name string) (uint32, bool) {
	if name == "" {
		return 0, false
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func asUint32(v value.Value) (uint32, bool) {
	if v.Tag() != value.Number {
		return 0, false
	}
	return uint32(v.Float64()), true
}

func (vm *VM) stringLength(v value.Value) int {
	if n := v.StringLen(); n > 0 {
		return n
	}
	return len([]rune(string(v.Bytes())))
}

func decodeAt(b []byte, idx uint32) (rune, int) {
	runes := []rune(string(b))
	if int(idx) >= len(runes) {
		return 0, 0
	}
	return runes[idx], 1
}
