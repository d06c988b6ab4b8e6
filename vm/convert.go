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
	"strconv"

	"github.com/emberlang/ember/value"
)

// needsTrap reports whether converting v to a primitive requires running
// its valueOf/toString: true only for heap object-ish tags, since
// every other tag already has a direct primitive conversion.
func needsTrap(v value.Value) bool {
	switch v.Tag() {
	case value.Object, value.Array, value.Function, value.NativeFunction, value.RegExp, value.External:
		return true
	default:
		return false
	}
}

// toStringFast converts a value already known not to require a trap
// (primitives only) to its string form. Callers that might hold an
// object-tagged value must route through the trap machinery in trap.go
// instead (ops.go does, for arithmetic/string-concat operands).
func (vm *VM) toStringFast(v value.Value) string {
	switch v.Tag() {
	case value.StringTag:
		return string(v.Bytes())
	case value.Number:
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case value.Boolean:
		if v.Truth() {
			return "true"
		}
		return "false"
	case value.Null:
		return "null"
	case value.Undefined:
		return "undefined"
	default:
		return v.Tag().String()
	}
}

// toNumberFast is toStringFast's numeric counterpart for non-trapping
// tags.
func toNumberFast(v value.Value) float64 {
	switch v.Tag() {
	case value.Number:
		return v.Float64()
	case value.Boolean:
		if v.Truth() {
			return 1
		}
		return 0
	case value.Null:
		return 0
	case value.StringTag:
		s := string(v.Bytes())
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nanValue()
		}
		return f
	default:
		return nanValue()
	}
}

func nanValue() float64 {
	v := value.Undef()
	return v.Float64()
}
