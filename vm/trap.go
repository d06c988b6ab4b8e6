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

import "github.com/emberlang/ember/value"

// valueOfName/toStringName are the two well-known conversion methods
// ToPrimitive consults.
const (
	valueOfName  = "valueOf"
	toStringName = "toString"
)

// toPrimitive implements the implicit-conversion trap: when an
// operand is an object-ish tag, ToPrimitive runs valueOf then toString
// (or the reverse, for a "string" hint) until one returns a non-object
// value, bounded by trapDepth so two objects whose conversion methods
// call each other cannot recurse without limit. Every arithmetic,
// comparison, and string-concatenation operand in ops.go that might be
// object-tagged routes through here before the operation itself runs.
func (vm *VM) toPrimitive(v value.Value, hint string) (value.Value, error) {
	if !needsTrap(v) {
		return v, nil
	}
	if vm.trapDepth >= maxReentry {
		return value.Undef(), &Exception{
			Kind:  ErrType,
			Value: value.String([]byte("cannot convert object to primitive value"), 40),
		}
	}
	vm.trapDepth++
	defer func() { vm.trapDepth-- }()

	order := [2]string{valueOfName, toStringName}
	if hint == "string" {
		order = [2]string{toStringName, valueOfName}
	}
	for _, name := range order {
		method, err := vm.getProp(v, value.String([]byte(name), len(name)))
		if err != nil {
			return value.Undef(), err
		}
		if !isCallable(method) {
			continue
		}
		result, err := vm.callSync(method, nil)
		if err != nil {
			return value.Undef(), err
		}
		if !needsTrap(result) {
			return result, nil
		}
	}
	return value.Undef(), &Exception{
		Kind:  ErrType,
		Value: value.String([]byte("cannot convert object to primitive value"), 40),
	}
}

// toNumber converts v to a Number, running the trap first when needed.
func (vm *VM) toNumber(v value.Value) (float64, error) {
	if needsTrap(v) {
		p, err := vm.toPrimitive(v, "number")
		if err != nil {
			return 0, err
		}
		v = p
	}
	return toNumberFast(v), nil
}

// toStringValue converts v to a String value, running the trap first
// when needed.
func (vm *VM) toStringValue(v value.Value) (string, error) {
	if needsTrap(v) {
		p, err := vm.toPrimitive(v, "string")
		if err != nil {
			return "", err
		}
		v = p
	}
	return vm.toStringFast(v), nil
}
