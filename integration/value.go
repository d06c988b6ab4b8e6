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

package integration

import (
	"strconv"

	"github.com/emberlang/ember/value"
)

// ValueAsString renders a result Value the way a host embedding layer
// typically needs it for display: no implicit-conversion trap is
// run here (traps only fire for operand conversion inside the VM's own
// arithmetic/comparison/concatenation — a host reading back a final
// result value should not kick off a script call as a side effect of
// inspection), so object-ish tags render as their class name.
func ValueAsString(v value.Value) string {
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
	case value.Object:
		return "[object Object]"
	case value.Array:
		return "[object Array]"
	case value.Function, value.NativeFunction:
		return "[object Function]"
	case value.RegExp:
		return "[object RegExp]"
	case value.External:
		return "[object External]"
	default:
		return v.Tag().String()
	}
}
